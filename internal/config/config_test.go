package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "canvas-agent.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
database:
  url: postgres://localhost/canvas
llm:
  default_provider: gemini
  gemini:
    api_key: test-key
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/canvas
llm:
  default_provider: openai
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadRequiresProviderAPIKey(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/canvas
llm:
  default_provider: gemini
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "gemini.api_key") {
		t.Fatalf("expected gemini.api_key error, got %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/canvas
llm:
  default_provider: anthropic
  anthropic:
    api_key: sk-ant-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Session.RetentionSchedule != "0 * * * *" {
		t.Errorf("RetentionSchedule = %q, want hourly default", cfg.Session.RetentionSchedule)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverridesAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")
	path := writeConfig(t, `
database:
  url: postgres://localhost/canvas
llm:
  default_provider: anthropic
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("Anthropic.APIKey = %q, want env override", cfg.LLM.Anthropic.APIKey)
	}
}
