package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository handles database operations for reminder messages.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new reminder message. Rows are never updated or deleted by
// this service.
func (r *Repository) Create(ctx context.Context, m *Message) error {
	if !m.Channel.Valid() {
		return fmt.Errorf("invalid channel kind: %q", m.Channel)
	}
	m.ID = uuid.New().String()
	m.CreatedAt = time.Now().UTC()
	if m.Status == "" {
		m.Status = StatusSent
	}

	query := `
		INSERT INTO reminder_messages (id, user_id, channel, content, status, error, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.Channel, m.Content, m.Status, m.Error, m.SentAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder message: %w", err)
	}
	return nil
}

// RecentByUserAndChannel returns the reminder messages sent to a user over
// the given channel since the given instant. The scanner uses this as the
// cooldown check.
func (r *Repository) RecentByUserAndChannel(ctx context.Context, userID string, channel Channel, since time.Time) ([]*Message, error) {
	query := `
		SELECT id, user_id, channel, content, status, COALESCE(error, ''), sent_at, created_at
		FROM reminder_messages
		WHERE user_id = $1 AND channel = $2 AND sent_at >= $3
		ORDER BY sent_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, channel, since)
	if err != nil {
		return nil, fmt.Errorf("query recent reminders: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Channel, &m.Content, &m.Status, &m.Error, &m.SentAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
