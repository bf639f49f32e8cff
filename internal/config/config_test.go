package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "COMPLETION_TIMEOUT_SECONDS",
		"SESSION_TTL_SECONDS", "MAX_TURNS", "SEARCH_ENDPOINT", "SEARCH_TIMEOUT_SECONDS",
		"SEARCH_RESULT_LIMIT", "RATE_LIMIT_PER_MINUTE", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
		"LOG_FILE", "TELEMETRY_ENABLED", "TELEMETRY_DIR",
	} {
		t.Setenv(key, "")
	}
	// t.Setenv cannot unset, so restore the "absent" defaults for keys where
	// an empty value would be meaningful.
	t.Setenv("PORT", "8000")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("TELEMETRY_DIR", "./data/telemetry")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.HasCompletionKey() {
		t.Error("HasCompletionKey() = true with empty key")
	}
	if cfg.OpenAI.Timeout != 60*time.Second {
		t.Errorf("OpenAI.Timeout = %v, want 60s", cfg.OpenAI.Timeout)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("Session.TTL = %v, want 1h", cfg.Session.TTL)
	}
	if cfg.Session.MaxTurns != 10 {
		t.Errorf("Session.MaxTurns = %d, want 10", cfg.Session.MaxTurns)
	}
	if cfg.Session.CleanupInterval != CleanupInterval {
		t.Errorf("Session.CleanupInterval = %v, want %v", cfg.Session.CleanupInterval, CleanupInterval)
	}
	if cfg.Search.Timeout != 20*time.Second {
		t.Errorf("Search.Timeout = %v, want 20s", cfg.Search.Timeout)
	}
	if cfg.Search.Limit != 5 {
		t.Errorf("Search.Limit = %d, want 5", cfg.Search.Limit)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, want [*]", cfg.CORSAllowedOrigins)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = true, want false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_API_KEY", "  sk-test  ")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:1234/v1")
	t.Setenv("SESSION_TTL_SECONDS", "120")
	t.Setenv("MAX_TURNS", "3")
	t.Setenv("SEARCH_RESULT_LIMIT", "8")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TELEMETRY_ENABLED", "yes")
	t.Setenv("TELEMETRY_DIR", "/tmp/pj")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.OpenAI.APIKey != "sk-test" || !cfg.HasCompletionKey() {
		t.Errorf("OpenAI.APIKey = %q, want trimmed key", cfg.OpenAI.APIKey)
	}
	if cfg.Session.TTL != 2*time.Minute {
		t.Errorf("Session.TTL = %v, want 2m", cfg.Session.TTL)
	}
	if cfg.Session.MaxTurns != 3 {
		t.Errorf("Session.MaxTurns = %d, want 3", cfg.Session.MaxTurns)
	}
	if cfg.Search.Limit != 8 {
		t.Errorf("Search.Limit = %d, want 8", cfg.Search.Limit)
	}
	if got := strings.Join(cfg.CORSAllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("CORSAllowedOrigins = %q", got)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Dir != "/tmp/pj" {
		t.Errorf("Telemetry = %+v", cfg.Telemetry)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:               "8000",
			OpenAI:             OpenAIConfig{Model: "gpt-4o-mini", Timeout: time.Minute},
			Session:            SessionConfig{TTL: time.Hour, MaxTurns: 10, CleanupInterval: CleanupInterval},
			Search:             SearchConfig{Timeout: time.Second, Limit: 5},
			RateLimitPerMinute: 30,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"empty model", func(c *Config) { c.OpenAI.Model = "" }, "OPENAI_MODEL"},
		{"bad base url", func(c *Config) { c.OpenAI.BaseURL = "not a url" }, "OPENAI_BASE_URL"},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, "SESSION_TTL_SECONDS"},
		{"zero turns", func(c *Config) { c.Session.MaxTurns = 0 }, "MAX_TURNS"},
		{"limit too high", func(c *Config) { c.Search.Limit = 11 }, "SEARCH_RESULT_LIMIT"},
		{"negative rate", func(c *Config) { c.RateLimitPerMinute = -1 }, "RATE_LIMIT_PER_MINUTE"},
		{"telemetry without dir", func(c *Config) { c.Telemetry.Enabled = true }, "TELEMETRY_DIR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
