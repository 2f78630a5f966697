package encryption

import "fmt"

// Algorithm names an AEAD cipher.
type Algorithm string

const (
	// AlgorithmAESGCM is AES-256-GCM.
	AlgorithmAESGCM Algorithm = "aes-256-gcm"
	// AlgorithmChaCha20 is ChaCha20-Poly1305, fast on CPUs without AES-NI.
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
)

const minKeyLength = 16

// Config configures at-rest encryption.
type Config struct {
	Enabled   bool      `yaml:"enabled" mapstructure:"enabled"`
	Key       string    `yaml:"key" mapstructure:"key" json:"-"`
	Algorithm Algorithm `yaml:"algorithm" mapstructure:"algorithm"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmAESGCM
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Key) < minKeyLength {
		return fmt.Errorf("encryption: key must be at least %d characters", minKeyLength)
	}
	switch c.Algorithm {
	case AlgorithmAESGCM, AlgorithmChaCha20:
		return nil
	default:
		return fmt.Errorf("encryption: unknown algorithm %q", c.Algorithm)
	}
}
