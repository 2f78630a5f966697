package kafka

import (
	"crypto/tls"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// CreateTransport builds the producer transport with the configured TLS
// and SASL.
func CreateTransport(cfg *Config) (*kafka.Transport, error) {
	tc, mech, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		DialTimeout: cfg.DialTimeout,
		IdleTimeout: cfg.IdleTimeout,
		TLS:         tc,
		SASL:        mech,
	}, nil
}

// CreateDialer builds the dialer the health check uses.
func CreateDialer(cfg *Config) (*kafka.Dialer, error) {
	tc, mech, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       cfg.DialTimeout,
		DualStack:     true,
		TLS:           tc,
		SASLMechanism: mech,
	}, nil
}

func credentials(cfg *Config) (*tls.Config, sasl.Mechanism, error) {
	tc, err := cfg.TLS.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("kafka %w", err)
	}
	if !cfg.EnableSASL {
		return tc, nil, nil
	}
	mech, err := saslMechanism(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka sasl: %w", err)
	}
	return tc, mech, nil
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	switch cfg.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	}
	return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
}

// ResolveCompression maps a codec name to kafka-go's; unknown names mean
// snappy.
func ResolveCompression(name string) kafka.Compression {
	switch name {
	case "none":
		return 0
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	}
	return kafka.Snappy
}
