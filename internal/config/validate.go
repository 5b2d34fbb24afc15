package config

import (
	"fmt"
	"net/url"
)

// ValidateBaseURL checks that a base URL is valid and uses http/https scheme.
func ValidateBaseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("base URL must use http or https scheme, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL must have a host")
	}
	return nil
}

// Validate checks the parts of a config that would make startup fail later.
func (c *Config) Validate() error {
	if c.LLM.BaseURL != "" {
		if err := ValidateBaseURL(c.LLM.BaseURL); err != nil {
			return fmt.Errorf("llm base url: %w", err)
		}
	}
	if c.FallbackLLM != nil && c.FallbackLLM.BaseURL != "" {
		if err := ValidateBaseURL(c.FallbackLLM.BaseURL); err != nil {
			return fmt.Errorf("fallback llm base url: %w", err)
		}
	}
	if c.Agent.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}
	return nil
}
