package config

// Config is the top-level application configuration.
type Config struct {
	Agent       AgentConfig    `json:"agent"`
	LLM         LLMConfig      `json:"llm"`
	FallbackLLM *LLMConfig     `json:"fallback_llm,omitempty"`
	Memory      MemoryConfig   `json:"memory"`
	Server      ServerConfig   `json:"server"`
	Channels    ChannelsConfig `json:"channels"`
	Security    SecurityConfig `json:"security"`
}

type AgentConfig struct {
	SystemPrompt string  `json:"system_prompt"`
	UserName     string  `json:"user_name,omitempty"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	HistoryLimit int     `json:"history_limit"`
}

// LLMConfig describes one completion provider. The primary entry targets an
// xAI-compatible deployment; FallbackLLM, when present, is the OpenAI-style
// secondary used after the primary cascade is exhausted.
type LLMConfig struct {
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	ChatPath string `json:"chat_path,omitempty"`
}

type MemoryConfig struct {
	DBPath        string `json:"db_path,omitempty"`
	RetentionDays int    `json:"retention_days"`
	SweepSchedule string `json:"sweep_schedule,omitempty"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type ChannelsConfig struct {
	Console  bool            `json:"console"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token      string  `json:"token"`
	AllowedIDs []int64 `json:"allowed_ids,omitempty"`
}

type SecurityConfig struct {
	PIIFiltering PIIFilterConfig `json:"pii_filtering"`
}

type PIIFilterConfig struct {
	Enabled      bool `json:"enabled"`
	FilterEmails bool `json:"filter_emails"`
	FilterPhones bool `json:"filter_phones"`
	FilterCards  bool `json:"filter_cards"`
	FilterIPs    bool `json:"filter_ips"`
	FilterSSN    bool `json:"filter_ssn"`
}
