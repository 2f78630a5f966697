package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/meetscribe/config"
)

func TestShippedConfigLoads(t *testing.T) {
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile("config.yml"), config.WithEnvPrefix("MEETSCRIBE_TEST")); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Name != serviceName {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Storage.Provider != "local" || !cfg.Database.Enabled {
		t.Errorf("unexpected storage/database config: %+v %+v", cfg.Storage, cfg.Database)
	}
	if cfg.LLM.Default != "ollama" || !cfg.LLM.Ollama.Enabled {
		t.Errorf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.Live.Cluster.Threshold != 0.7 {
		t.Errorf("live cluster threshold = %v", cfg.Live.Cluster.Threshold)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"database disabled", func(c *Config) { c.Database.Enabled = false }, "database must be enabled"},
		{"storage disabled", func(c *Config) { c.Storage.Enabled = false }, "storage must be enabled"},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "service:"},
		{"short auth secret", func(c *Config) { c.Auth.Enabled, c.Auth.Secret = true, "short" }, "auth:"},
		{"unknown llm", func(c *Config) { c.LLM.Default = "claude" }, "llm:"},
		{"encryption without key", func(c *Config) { c.Encryption.Enabled = true }, "encryption:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.Database.Enabled = true
			cfg.Storage.Enabled = true
			cfg.Storage.BasePath = t.TempDir()
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MSTEST_SERVER_PORT", "9090")

	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile(path), config.WithEnvPrefix("MSTEST")); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
}
