package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			SystemPrompt: "You are Kora, an AI companion powered by Grok.",
			MaxTokens:    1024,
			Temperature:  0.7,
			HistoryLimit: 50,
		},
		LLM: LLMConfig{
			Model: "grok-4-1-fast-reasoning",
		},
		Memory: MemoryConfig{
			RetentionDays: 0,
			SweepSchedule: "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		Channels: ChannelsConfig{
			Console: true,
		},
		Security: SecurityConfig{
			PIIFiltering: PIIFilterConfig{
				Enabled:      true,
				FilterEmails: true,
				FilterPhones: true,
				FilterCards:  true,
				FilterIPs:    false,
				FilterSSN:    true,
			},
		},
	}
}
