package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Notification struct {
	ID        string
	EventID   string
	EventType string
	Channel   string
	Recipient string
	Subject   string
	Status    string
	Attempts  int
	LastError string
	SentAt    *time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Channel == "" {
		n.Channel = "email"
	}
	var lastErr *string
	if n.LastError != "" {
		lastErr = &n.LastError
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, event_id, event_type, channel, recipient, subject, status, attempts, last_error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, n.ID, n.EventID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Status, n.Attempts, lastErr, n.SentAt)
	return err
}
