package reminder

import (
	"time"
)

// Channel is the delivery channel for a reminder message.
type Channel string

const (
	Email Channel = "email"
	SMS   Channel = "sms"
	Push  Channel = "push"
	InApp Channel = "in_app"
	Chat  Channel = "chat"
)

// Valid reports whether c is one of the enumerated channel kinds.
func (c Channel) Valid() bool {
	switch c {
	case Email, SMS, Push, InApp, Chat:
		return true
	}
	return false
}

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Message is an immutable record of a reminder attempt. Its existence for a
// user within the cooldown window is the sole dedupe signal; there is no
// separate "reminder sent" flag. Status and Error capture the delivery
// outcome without affecting the cooldown.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Channel   Channel   `json:"channel"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
	CreatedAt time.Time `json:"created_at"`
}
