package api

import (
	"fmt"
	"time"
)

// Config configures the HTTP handlers and the live websocket.
type Config struct {
	// PingInterval is how often the websocket is pinged. A client that does
	// not answer within two intervals is dropped.
	PingInterval time.Duration `mapstructure:"ping_interval"`
	// WriteTimeout bounds every websocket write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxChunkBytes limits one websocket audio frame.
	MaxChunkBytes int64 `mapstructure:"max_chunk_bytes"`
	// AllowedOrigins lists origins allowed to open the websocket. Empty
	// means same origin only; "*" allows any.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxChunkBytes == 0 {
		c.MaxChunkBytes = 8 << 20
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.PingInterval < time.Second {
		return fmt.Errorf("api: ping_interval must be at least 1s")
	}
	if c.MaxChunkBytes < 1024 {
		return fmt.Errorf("api: max_chunk_bytes must be at least 1024")
	}
	return nil
}

func (c *Config) pongWait() time.Duration {
	return 2 * c.PingInterval
}
