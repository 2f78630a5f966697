// Package producer writes meetscribe events to Kafka.
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/resilience"
)

// messageWriter is the subset of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

// Producer wraps a kafka-go Writer with TLS/SASL, retries and logging.
type Producer struct {
	writer messageWriter
	cfg    kafka.Config
	log    *logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewLazyProducer creates a Producer that initializes the underlying writer
// on first use, so a missing broker never blocks startup.
func NewLazyProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	return &Producer{cfg: cfg, log: log.WithComponent("kafka.producer")}, nil
}

func (p *Producer) ensureWriter() error {
	p.mu.RLock()
	ready := p.writer != nil
	p.mu.RUnlock()
	if ready {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		return nil
	}
	transport, err := kafka.CreateTransport(&p.cfg)
	if err != nil {
		return fmt.Errorf("kafka producer transport: %w", err)
	}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: p.cfg.BatchTimeout,
		RequiredAcks: kafkago.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  kafka.ResolveCompression(p.cfg.Compression),
		WriteTimeout: p.cfg.WriteTimeout,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}
	p.log.Info("kafka producer initialized", logger.Fields("brokers", p.cfg.Brokers, "compression", p.cfg.Compression))
	return nil
}

// Name returns the producer name.
func (p *Producer) Name() string { return p.cfg.Name }

// IsAvailable reports whether the producer accepts writes.
func (p *Producer) IsAvailable(_ context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

// WriteMessages sends messages, retrying transient broker errors.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if err := p.ensureWriter(); err != nil {
		return err
	}
	p.mu.RLock()
	closed, w := p.closed, p.writer
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    p.cfg.Retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2,
		RetryIf:        kafka.IsRetryableError,
	}
	err := resilience.RetryFunc(ctx, retry, func() error {
		return w.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Stats counts what the writer published since the previous call;
// kafka-go resets its counters on every read.
type Stats struct {
	Writes   int64         `json:"writes"`
	Messages int64         `json:"messages"`
	Errors   int64         `json:"errors"`
	AvgWrite time.Duration `json:"avg_write"`
}

func statsOf(s kafkago.WriterStats) Stats {
	return Stats{Writes: s.Writes, Messages: s.Messages, Errors: s.Errors, AvgWrite: s.WriteTime.Avg}
}

// Stats returns the writer counters since the previous call.
func (p *Producer) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.writer == nil {
		return Stats{}
	}
	return statsOf(p.writer.Stats())
}

// Close flushes and shuts down the producer. Safe to call more than once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.writer == nil {
		return nil
	}
	stats := statsOf(p.writer.Stats())
	p.log.Info("kafka producer closing", logger.Fields("messages", stats.Messages, "errors", stats.Errors))
	return p.writer.Close()
}
