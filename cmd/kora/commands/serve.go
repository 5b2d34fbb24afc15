package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kora/internal/app"
	"kora/internal/observability"
)

// newServeCmd creates the `kora serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the companion service",
		Long: `Start Kora as a long-running service: HTTP API, configured
channels and the retention sweeper.

Examples:
  kora serve
  kora serve --log-level debug`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Root().PersistentFlags().GetString("log-format")
	level, _ := cmd.Root().PersistentFlags().GetString("log-level")
	observability.Init(format, parseLevel(level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New()
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	log := observability.Logger()
	log.Info("kora running, press ctrl+c to stop")
	<-ctx.Done()
	stop()
	log.Info("shutdown signal received, stopping")

	done := make(chan struct{})
	go func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		application.Stop(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		log.Info("shutdown complete")
	case <-time.After(15 * time.Second):
		log.Warn("shutdown timed out, forcing exit")
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
