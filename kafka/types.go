package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope written to the jobs topic.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event with a fresh ID. subject is the partition key,
// normally the meeting ID so one meeting's events stay ordered.
func NewEvent(eventType, subject string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    "meetscribe",
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the event payload into v.
func (e Event) ParseData(v any) error {
	return json.Unmarshal(e.Data, v)
}
