// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CleanupInterval is the minimum spacing between expired-session sweeps.
const CleanupInterval = 60 * time.Second

// Config holds all application configuration.
type Config struct {
	Port               string
	OpenAI             OpenAIConfig
	Session            SessionConfig
	Search             SearchConfig
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	LogLevel           slog.Level
	LogFile            string // empty = stdout only
	Telemetry          TelemetryConfig
}

// OpenAIConfig controls the completion client.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls the in-memory session registry.
type SessionConfig struct {
	TTL             time.Duration
	MaxTurns        int
	CleanupInterval time.Duration
}

// SearchConfig controls the web search fetcher.
type SearchConfig struct {
	Endpoint string
	Timeout  time.Duration
	Limit    int
}

// TelemetryConfig controls trace and metric export.
type TelemetryConfig struct {
	Enabled bool
	Dir     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "8000"),
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Timeout: getEnvSeconds("COMPLETION_TIMEOUT_SECONDS", 60*time.Second),
		},
		Session: SessionConfig{
			TTL:             getEnvSeconds("SESSION_TTL_SECONDS", time.Hour),
			MaxTurns:        getEnvInt("MAX_TURNS", 10),
			CleanupInterval: CleanupInterval,
		},
		Search: SearchConfig{
			Endpoint: getEnv("SEARCH_ENDPOINT", "https://html.duckduckgo.com/html/"),
			Timeout:  getEnvSeconds("SEARCH_TIMEOUT_SECONDS", 20*time.Second),
			Limit:    getEnvInt("SEARCH_RESULT_LIMIT", 5),
		},
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		LogFile:            getEnv("LOG_FILE", ""),
		Telemetry: TelemetryConfig{
			Enabled: getEnvBool("TELEMETRY_ENABLED", false),
			Dir:     getEnv("TELEMETRY_DIR", "./data/telemetry"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing OPENAI_API_KEY is not an error: only the completion path needs it.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("OPENAI_MODEL cannot be empty")
	}
	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT_SECONDS must be > 0")
	}
	if c.OpenAI.BaseURL != "" {
		if u, err := url.Parse(c.OpenAI.BaseURL); err != nil || u.Host == "" {
			return fmt.Errorf("OPENAI_BASE_URL is not a valid URL: %q", c.OpenAI.BaseURL)
		}
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be > 0")
	}
	if c.Session.MaxTurns <= 0 {
		return fmt.Errorf("MAX_TURNS must be > 0")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("SEARCH_TIMEOUT_SECONDS must be > 0")
	}
	if c.Search.Limit < 1 || c.Search.Limit > 10 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be between 1 and 10")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.Dir == "" {
		return fmt.Errorf("TELEMETRY_DIR cannot be empty when telemetry is enabled")
	}
	return nil
}

// HasCompletionKey reports whether the completion credential is configured.
func (c *Config) HasCompletionKey() bool {
	return c.OpenAI.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvSeconds reads a whole number of seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
