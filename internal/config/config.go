// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fk219/webbot-voice/pkg/live"
)

// Config represents the complete client configuration
type Config struct {
	// GeminiAPIKey authenticates against the live and preview APIs.
	GeminiAPIKey string

	// DatabaseURL enables transcript and usage persistence when set.
	DatabaseURL string

	// MetricsAddr exposes Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string

	// Model overrides the default live model.
	Model string

	// Debug enables verbose session logging.
	Debug bool
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey: firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		Model:        envOr("VOICE_MODEL", live.DefaultModel),
		Debug:        envBool("VOICE_DEBUG"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) must be set")
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
