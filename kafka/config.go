package kafka

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/meetscribe/security"
)

// DefaultTopic receives job lifecycle events.
const DefaultTopic = "meetscribe.jobs"

var saslMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}

// Config configures the job event producer. The bus is optional; with
// Enabled false nothing is published.
type Config struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Name    string   `yaml:"name" mapstructure:"name"`
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`

	// TLS is used for broker connections when any field is set.
	TLS security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password" json:"-"`

	Compression  string        `yaml:"compression" mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	Retries      int           `yaml:"retries" mapstructure:"retries"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks" mapstructure:"required_acks"` // -1 waits for all replicas
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// ApplyDefaults fills zero values. Job events are few, so batches default
// to a single message.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "kafka"
	}
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.EnableSASL && c.SASLMechanism == "" {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks an enabled configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("brokers are required"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if c.Retries <= 0 {
		errs = append(errs, errors.New("retries must be positive"))
	}
	if c.WriteTimeout <= 0 || c.DialTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.EnableSASL {
		if !slices.Contains(saslMechanisms, c.SASLMechanism) {
			errs = append(errs, fmt.Errorf("unsupported SASL mechanism %q", c.SASLMechanism))
		}
		if c.Username == "" {
			errs = append(errs, errors.New("SASL username is required"))
		}
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	return nil
}
