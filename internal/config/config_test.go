package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 for non-integer value, got %d", v)
	}
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.35")
	if v := envFloat("TEST_FLOAT", 1.0); v != 0.35 {
		t.Fatalf("expected 0.35, got %v", v)
	}
	if v := envFloat("TEST_FLOAT_MISSING", 1.0); v != 1.0 {
		t.Fatalf("expected fallback 1.0, got %v", v)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m, got %s", v)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	// With no env vars set, Load should succeed using all defaults.
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.GenProvider != "ollama" {
		t.Fatalf("expected default provider ollama, got %q", cfg.GenProvider)
	}
	if cfg.DailyDebateLimit != 10 {
		t.Fatalf("expected default daily limit 10, got %d", cfg.DailyDebateLimit)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("AGORA_GEN_PROVIDER", "psychic")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with an unknown provider")
	}
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("AGORA_GEN_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail without OPENAI_API_KEY")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with a key, got: %v", err)
	}
	if cfg.GenProvider != "openai" {
		t.Fatalf("expected openai provider, got %q", cfg.GenProvider)
	}
}

func TestLoadRejectsNegativeDailyLimit(t *testing.T) {
	t.Setenv("AGORA_DAILY_DEBATE_LIMIT", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with a negative daily limit")
	}
}
