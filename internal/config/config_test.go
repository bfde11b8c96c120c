package config

import (
	"os"
	"testing"
)

const sampleConfig = `
ollama:
  base_url: http://localhost:11434
  timeout_seconds: 45
  default_model: llama2:7b
llm:
  provider: openai
  base_url: http://localhost:11434/v1
  api_key: dummy
  model: llama2:7b
store:
  path: /tmp/assistant-test.db
  retention_days: 14
server:
  host: 0.0.0.0
  port: "7861"
log_level: debug
`

// TestLoad verifies that Load unmarshals every config section.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("unexpected base url: %s", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.TimeoutSeconds != 45 {
		t.Fatalf("unexpected timeout: %d", cfg.Ollama.TimeoutSeconds)
	}
	if cfg.Ollama.DefaultModel != "llama2:7b" {
		t.Fatalf("unexpected default model: %s", cfg.Ollama.DefaultModel)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("unexpected provider: %s", cfg.LLM.Provider)
	}
	if cfg.Store.RetentionDays != 14 {
		t.Fatalf("unexpected retention: %d", cfg.Store.RetentionDays)
	}
	if cfg.Server.Port != "7861" {
		t.Fatalf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

// TestLoad_Defaults verifies defaults apply when sections are omitted.
func TestLoad_Defaults(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString("server:\n  host: 127.0.0.1\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("default base url not applied: %s", cfg.Ollama.BaseURL)
	}
	if cfg.Store.RetentionDays != 30 {
		t.Fatalf("default retention not applied: %d", cfg.Store.RetentionDays)
	}
}
