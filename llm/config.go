package llm

import (
	"fmt"
	"time"
)

// ProviderConfig configures one text-completion backend.
type ProviderConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ToMap converts the config into the map consumed by provider factories.
func (c ProviderConfig) ToMap() map[string]any {
	return map[string]any{
		"base_url":    c.BaseURL,
		"model":       c.Model,
		"api_key":     c.APIKey,
		"temperature": c.Temperature,
		"max_tokens":  c.MaxTokens,
		"timeout":     c.Timeout,
	}
}

// Config selects and configures text-completion backends.
type Config struct {
	// Default is tried first; the other enabled backend is the fallback.
	Default string         `yaml:"default" mapstructure:"default"`
	Ollama  ProviderConfig `yaml:"ollama" mapstructure:"ollama"`
	OpenAI  ProviderConfig `yaml:"openai" mapstructure:"openai"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Default == "" {
		c.Default = "ollama"
	}
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = 0.1
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.1
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = 120 * time.Second
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 30 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Default {
	case "ollama", "openai":
	default:
		return fmt.Errorf("llm: unknown default provider %q", c.Default)
	}
	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
		return fmt.Errorf("llm: openai requires api_key or base_url")
	}
	return nil
}

// Priority returns enabled backend names, default first.
func (c *Config) Priority() []string {
	enabled := map[string]bool{"ollama": c.Ollama.Enabled, "openai": c.OpenAI.Enabled}
	var out []string
	if enabled[c.Default] {
		out = append(out, c.Default)
	}
	for _, name := range []string{"ollama", "openai"} {
		if name != c.Default && enabled[name] {
			out = append(out, name)
		}
	}
	return out
}
