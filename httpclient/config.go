package httpclient

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/security"
)

const defaultTimeout = 30 * time.Second

// Config configures the HTTP client.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Timeout bounds a whole request including the body read. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// APIKey, when set, is sent as a bearer token.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Headers are applied to every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
	// TLS configures the transport for https sidecars.
	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Auth overrides APIKey with a specific scheme.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`
	// Resilience wraps each request. Retry is usually left nil because
	// callers decide whether a stage is retried.
	Resilience provider.ResilienceConfig `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Auth == nil && c.APIKey != "" {
		c.Auth = BearerAuth(c.APIKey)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if err := c.TLS.Validate(); err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("httpclient: invalid base_url %q", c.BaseURL)
		}
	}
	return nil
}
