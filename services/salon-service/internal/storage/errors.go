package storage

import (
	"errors"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Constraint and index names the repositories map to domain errors. They
// must match migrations/0001_init.sql.
const (
	ConstraintReservationSlot        = "reservations_slot_active_key"
	ConstraintReservationIdempotency = "reservations_idempotency_key_key"
	ConstraintUserEmail              = "users_email_key"
)

var ErrIdempotencyKeyTaken = errors.New("idempotency key already used")

// mapNotFound turns an empty result into model.ErrNotFound.
func mapNotFound(err error) error {
	if db.IsNotFound(err) {
		return model.ErrNotFound
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
