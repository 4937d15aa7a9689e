package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %q", cfg.Model)
	}
	if cfg.TokenBudget != 800 {
		t.Errorf("expected default token_budget 800, got %d", cfg.TokenBudget)
	}
	if cfg.TopK != 3 {
		t.Errorf("expected default top_k 3, got %d", cfg.TopK)
	}
	if cfg.Temperature != 0 {
		t.Errorf("expected default temperature 0, got %f", cfg.Temperature)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.docqa.yml")

	original := DefaultConfig()
	original.Provider = ProviderOllama
	original.Model = "llama3"
	original.TokenBudget = 1200
	original.Include = []string{"**/*.pdf", "**/*.txt"}
	original.Server.Port = 9090

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.TokenBudget != original.TokenBudget {
		t.Errorf("token_budget: got %d, want %d", loaded.TokenBudget, original.TokenBudget)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("server.port: got %d, want 9090", loaded.Server.Port)
	}
	if len(loaded.Include) != len(original.Include) {
		t.Fatalf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	for i, v := range loaded.Include {
		if v != original.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Collection != "documents" {
		t.Errorf("expected default collection, got %q", cfg.Collection)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DOCQA_MODEL", "gpt-4.1-mini")
	t.Setenv("DOCQA_TOP_K", "5")
	t.Setenv("DOCQA_SERVER__PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "gpt-4.1-mini" {
		t.Errorf("model: got %q", cfg.Model)
	}
	if cfg.TopK != 5 {
		t.Errorf("top_k: got %d", cfg.TopK)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("server.port: got %d", cfg.Server.Port)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing provider", func(c *Config) { c.Provider = "" }, "provider is required"},
		{"bad provider", func(c *Config) { c.Provider = "acme" }, "invalid provider"},
		{"missing model", func(c *Config) { c.Model = "" }, "model is required"},
		{"bad estimator", func(c *Config) { c.TokenEstimator = "words" }, "invalid token_estimator"},
		{"zero budget", func(c *Config) { c.TokenBudget = 0 }, "token_budget"},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, "top_k"},
		{"hot temperature", func(c *Config) { c.Temperature = 3 }, "temperature"},
		{"no source dir", func(c *Config) { c.SourceDir = "" }, "source_dir"},
		{"bad ttl", func(c *Config) { c.Server.SessionTTL = "soon" }, "session_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSessionTTL(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.SessionTTL()
	if err != nil {
		t.Fatal(err)
	}
	if d != 2*time.Hour {
		t.Errorf("expected 2h, got %v", d)
	}
	cfg.Server.SessionTTL = ""
	if d, _ := cfg.SessionTTL(); d != 0 {
		t.Errorf("expected 0 for empty ttl, got %v", d)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	if got := APIKeyEnvVar(ProviderOpenAI); got != "OPENAI_API_KEY" {
		t.Errorf("got %q", got)
	}
	if got := APIKeyEnvVar(ProviderOllama); got != "" {
		t.Errorf("ollama needs no key, got %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" **/*.pdf , ,**/*.txt")
	if len(got) != 2 || got[0] != "**/*.pdf" || got[1] != "**/*.txt" {
		t.Errorf("unexpected split: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("ingested", "added", 2)
	logger.Debug("hidden")

	if !strings.Contains(stderr.String(), "msg=ingested") {
		t.Errorf("stderr should carry text output, got %q", stderr.String())
	}
	if !strings.Contains(file.String(), `"msg":"ingested"`) {
		t.Errorf("file should carry JSON output, got %q", file.String())
	}
	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug line should be filtered at info level")
	}
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "docqa.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry: %q", data)
	}
}
