// Package commands implements the kora CLI using cobra.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kora",
		Short: "Kora - AI companion service",
		Long: `Kora is an AI companion backed by Grok with automatic provider
fallback, persistent conversation memory and multi-channel delivery.

Examples:
  kora serve
  kora serve --log-format text --log-level debug
  kora version`,
		Version: version,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// godotenv.Load does not overwrite existing env vars.
			for _, f := range []string{".env", ".env.local"} {
				_ = godotenv.Load(f)
			}
		},
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newVersionCmd(version),
	)

	rootCmd.PersistentFlags().String("log-format", "json", "log output format (json, text)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	return rootCmd
}
