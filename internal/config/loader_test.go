package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	loader := &Loader{
		filePath: filepath.Join(t.TempDir(), "config.json"),
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.Model != "grok-4-1-fast-reasoning" {
		t.Fatalf("expected grok-4-1-fast-reasoning, got %s", cfg.LLM.Model)
	}
	if cfg.Agent.HistoryLimit != 50 {
		t.Fatalf("expected 50, got %d", cfg.Agent.HistoryLimit)
	}
	if cfg.FallbackLLM != nil {
		t.Fatal("expected no fallback provider by default")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	loader := &Loader{filePath: path}

	cfg := Defaults()
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.ChatPath = "v1/chat/completions"
	cfg.FallbackLLM = &LLMConfig{Model: "gpt-4o-mini", APIKey: "fallback-key"}

	if err := loader.Save(cfg); err != nil {
		t.Fatal(err)
	}

	// Verify file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	// Load back
	loaded, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	if loaded.LLM.APIKey != "test-key" {
		t.Fatalf("expected test-key, got %s", loaded.LLM.APIKey)
	}
	if loaded.LLM.ChatPath != "v1/chat/completions" {
		t.Fatalf("expected custom chat path, got %s", loaded.LLM.ChatPath)
	}
	if loaded.FallbackLLM == nil || loaded.FallbackLLM.APIKey != "fallback-key" {
		t.Fatal("expected fallback provider to round-trip")
	}
}

func TestValidateBaseURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.x.ai", false},
		{"http://localhost:8080", false},
		{"ftp://files.example.com", true},
		{"https://", true},
		{"not a url", true},
	}

	for _, tc := range cases {
		err := ValidateBaseURL(tc.url)
		if tc.wantErr && err == nil {
			t.Fatalf("expected error for %q", tc.url)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.url, err)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.LLM.BaseURL = "ftp://bad"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad base url")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("XAI_API_KEY", "env-key")
	t.Setenv("XAI_API_BASE_URL", "https://proxy.example.com")
	t.Setenv("XAI_API_CHAT_PATH", "api/chat")
	t.Setenv("OPENAI_API_KEY", "env-openai")

	cfg := Defaults()
	ApplyEnv(cfg)

	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != "https://proxy.example.com" {
		t.Fatalf("unexpected base url %s", cfg.LLM.BaseURL)
	}
	if cfg.LLM.ChatPath != "api/chat" {
		t.Fatalf("unexpected chat path %s", cfg.LLM.ChatPath)
	}
	if cfg.FallbackLLM == nil || cfg.FallbackLLM.APIKey != "env-openai" {
		t.Fatal("expected fallback provider from environment")
	}
}
