package producer

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/provider"
)

// Publisher writes event envelopes to a single topic.
type Publisher struct {
	producer *Producer
	topic    string
}

var _ provider.Sink[kafka.Event] = (*Publisher)(nil)

// NewPublisher creates a Publisher bound to topic.
func NewPublisher(p *Producer, topic string) *Publisher {
	return &Publisher{producer: p, topic: topic}
}

// Name returns the producer name.
func (p *Publisher) Name() string { return p.producer.Name() }

// IsAvailable reports whether the producer accepts writes.
func (p *Publisher) IsAvailable(ctx context.Context) bool { return p.producer.IsAvailable(ctx) }

// Topic returns the destination topic.
func (p *Publisher) Topic() string { return p.topic }

// Send writes one event keyed by its subject.
func (p *Publisher) Send(ctx context.Context, event kafka.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := event.Subject
	if key == "" {
		key = event.ID
	}
	msg := kafkago.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: data,
		Time:  event.Timestamp,
		Headers: []kafkago.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := p.producer.WriteMessages(ctx, msg); err != nil {
		return kafka.FromKafka(err, p.topic)
	}
	return nil
}
