package model

import (
	"errors"
	"fmt"
)

const slotTakenMessage = "this time slot is no longer available, please choose another time"

var (
	// ErrSlotConflict is returned when the pre-insert check finds the slot
	// taken; ErrPersistenceConflict when the unique index rejects the insert.
	// Clients see the same message for both.
	ErrSlotConflict        = errors.New(slotTakenMessage)
	ErrPersistenceConflict = errors.New(slotTakenMessage)

	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrOutOfStock   = errors.New("insufficient stock")
	ErrEmailTaken   = errors.New("email already registered")

	// ErrIdempotencyMismatch is returned when an idempotency key is reused
	// for a request that differs from the one that first claimed it.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with different parameters")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
