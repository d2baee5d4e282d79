package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a business event emitted by this service.
type EventType string

const (
	EventViewRecorded EventType = "view.recorded"
	EventReminderSent EventType = "reminder.sent"
)

// Event is the envelope for all emitted events.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ViewRecordedData is the payload for view.recorded events.
type ViewRecordedData struct {
	ViewID      string    `json:"view_id"`
	UserID      string    `json:"user_id,omitempty"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	ViewedAt    time.Time `json:"viewed_at"`
}

// ReminderSentData is the payload for reminder.sent events.
type ReminderSentData struct {
	ReminderID string    `json:"reminder_id"`
	UserID     string    `json:"user_id"`
	Channel    string    `json:"channel"`
	Urgency    string    `json:"urgency"`
	Status     string    `json:"status"`
	SentAt     time.Time `json:"sent_at"`
}

// Publisher is the subset of the messaging producer the emitters need.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Emit marshals data into an Event envelope and publishes it keyed by the
// event type. A nil publisher is a no-op so event emission stays optional.
func Emit(ctx context.Context, pub Publisher, eventType EventType, data any) error {
	if pub == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	return pub.Publish(ctx, string(eventType), body)
}
