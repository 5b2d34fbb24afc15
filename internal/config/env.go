package config

import "os"

// ApplyEnv overlays process environment variables onto cfg. Environment
// values win over file values so deployments can point at a different
// provider without editing config.json.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("XAI_API_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("XAI_API_CHAT_PATH"); v != "" {
		cfg.LLM.ChatPath = v
	}
	if v := os.Getenv("XAI_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		ensureFallback(cfg).APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE_URL"); v != "" {
		ensureFallback(cfg).BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		ensureFallback(cfg).Model = v
	}

	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		if cfg.Channels.Telegram == nil {
			cfg.Channels.Telegram = &TelegramConfig{}
		}
		cfg.Channels.Telegram.Token = v
	}
	if v := os.Getenv("KORA_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("KORA_DB_PATH"); v != "" {
		cfg.Memory.DBPath = v
	}
}

func ensureFallback(cfg *Config) *LLMConfig {
	if cfg.FallbackLLM == nil {
		cfg.FallbackLLM = &LLMConfig{}
	}
	return cfg.FallbackLLM
}
