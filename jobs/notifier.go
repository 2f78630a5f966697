package jobs

import (
	"context"
	"encoding/json"

	"github.com/kbukum/meetscribe/kafka"
	"github.com/kbukum/meetscribe/logger"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/redis"
	"github.com/kbukum/meetscribe/sse"
)

// Notifier delivers meeting events.
type Notifier interface {
	Notify(ctx context.Context, e meeting.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e meeting.Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e meeting.Event) { f(ctx, e) }

// Publisher is a pub/sub channel writer.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// Fanout sends each event to every configured destination.
type Fanout struct {
	hub    sse.Broadcaster
	pubsub Publisher
	events provider.Sink[kafka.Event]
	log    *logger.Logger
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

// WithHub delivers events to SSE and websocket subscribers of the meeting.
func WithHub(b sse.Broadcaster) FanoutOption {
	return func(f *Fanout) { f.hub = b }
}

// WithPubSub publishes events on the meeting's Redis channel.
func WithPubSub(p Publisher) FanoutOption {
	return func(f *Fanout) { f.pubsub = p }
}

// WithEvents writes job lifecycle events to a Kafka topic.
func WithEvents(s provider.Sink[kafka.Event]) FanoutOption {
	return func(f *Fanout) { f.events = s }
}

// NewFanout creates a Fanout.
func NewFanout(log *logger.Logger, opts ...FanoutOption) *Fanout {
	f := &Fanout{log: log.WithComponent("notifier")}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Notify implements Notifier.
func (f *Fanout) Notify(ctx context.Context, e meeting.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		f.log.Error("marshal event", logger.ErrorFields("notify", err))
		return
	}
	if f.hub != nil {
		f.hub.BroadcastToPattern(sse.MeetingPattern(e.MeetingID), data)
	}
	if f.pubsub != nil {
		if _, err := f.pubsub.Publish(ctx, redis.MeetingChannel(e.MeetingID), data); err != nil {
			f.log.Warn("publish to redis failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, e.MeetingID), err))
		}
	}
	if f.events != nil && lifecycle(e.Type) {
		ev, err := kafka.NewEvent("meetscribe.job."+string(e.Type), e.MeetingID, e)
		if err == nil {
			err = f.events.Send(ctx, ev)
		}
		if err != nil {
			f.log.Warn("publish to kafka failed", logger.MergeWithError(logger.Fields(logger.FieldMeetingID, e.MeetingID), err))
		}
	}
}

// lifecycle reports whether t belongs on the jobs topic. Partial segments
// stay on the live channels.
func lifecycle(t meeting.EventType) bool {
	switch t {
	case meeting.EventProgress, meeting.EventError, meeting.EventFinalizeStarted,
		meeting.EventFinalizeComplete, meeting.EventPolishComplete:
		return true
	}
	return false
}
