package llm

import (
	"log/slog"

	"kora/internal/config"
)

// NewFromConfig assembles the completion client from application config,
// including the SDK-backed native client when a credential is present.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	c := Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		PathOverride: cfg.LLM.ChatPath,
		Model:        cfg.LLM.Model,
	}
	if cfg.FallbackLLM != nil {
		c.SecondaryAPIKey = cfg.FallbackLLM.APIKey
		c.SecondaryBaseURL = cfg.FallbackLLM.BaseURL
		c.SecondaryModel = cfg.FallbackLLM.Model
	}
	return New(c, NewNativeClient(c, logger), logger)
}
