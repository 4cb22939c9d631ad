package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "g-123")

	cfg, err := LoadConfig(writeConfig(t, `
gemini:
  api_key: "${TEST_GEMINI_KEY}"
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Gemini.APIKey != "g-123" {
		t.Errorf("expected expanded key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Speech.APIKey != "g-123" {
		t.Errorf("expected speech key to fall back to gemini key, got %q", cfg.Speech.APIKey)
	}
	if cfg.Server.Port != "8000" || cfg.Gemini.ModelName != "gemini-2.0-flash" {
		t.Errorf("unexpected defaults: port=%q model=%q", cfg.Server.Port, cfg.Gemini.ModelName)
	}
	if cfg.Scratch.ReleaseAttempts != 5 || cfg.Scratch.ReleaseDelay != 400*time.Millisecond {
		t.Errorf("unexpected scratch defaults %+v", cfg.Scratch)
	}
	if cfg.Evaluation.CallTimeout != time.Minute {
		t.Errorf("unexpected call timeout %v", cfg.Evaluation.CallTimeout)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("unexpected database type %q", cfg.Database.Type)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigProviders(t *testing.T) {
	t.Setenv("TEST_GROQ_KEY", "gq")

	cfg, err := LoadConfig(writeConfig(t, `
providers:
  - type: groq
    api_key: "${TEST_GROQ_KEY}"
    model_name: llama-3.3-70b-versatile
    retry_delay: 3s
    requests_per_minute: 30
speech:
  provider: whisper
  api_key: sk-whisper
scratch:
  release_delay: 250ms
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if len(cfg.Providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.APIKey != "gq" || p.RetryDelay != 3*time.Second || p.RequestsPerMinute != 30 {
		t.Errorf("unexpected provider %+v", p)
	}
	if cfg.Scratch.ReleaseDelay != 250*time.Millisecond {
		t.Errorf("unexpected release delay %v", cfg.Scratch.ReleaseDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing key": `
speech:
  api_key: s`,
		"speech provider": `
gemini:
  api_key: k
speech:
  provider: vosk`,
		"database": `
gemini:
  api_key: k
database:
  type: oracle`,
	}

	for name, body := range cases {
		cfg, err := LoadConfig(writeConfig(t, body))
		if err != nil {
			t.Fatalf("%s: LoadConfig: %v", name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil || !strings.Contains(err.Error(), "failed to open config file") {
		t.Errorf("unexpected error %v", err)
	}
}
