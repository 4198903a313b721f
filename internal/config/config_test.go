package config

import (
	"testing"

	"github.com/fk219/webbot-voice/pkg/live"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("VOICE_MODEL", "")
	t.Setenv("VOICE_DEBUG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GeminiAPIKey != "k" {
		t.Errorf("api key = %q", cfg.GeminiAPIKey)
	}
	if cfg.Model != live.DefaultModel {
		t.Errorf("model = %q, want default", cfg.Model)
	}
	if cfg.Debug {
		t.Error("debug enabled by default")
	}
}

func TestLoadKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "fallback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GeminiAPIKey != "fallback" {
		t.Errorf("api key = %q, want fallback", cfg.GeminiAPIKey)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without an API key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("VOICE_MODEL", "models/custom")
	t.Setenv("VOICE_DEBUG", "true")
	t.Setenv("METRICS_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "models/custom" || !cfg.Debug || cfg.MetricsAddr != ":9090" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}
