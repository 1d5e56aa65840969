package model

import (
	"errors"
	"time"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

var (
	ErrInvalidTransition = errors.New("invalid reservation status transition")
	ErrAlreadyStarted    = errors.New("reservation has already started")
	ErrNotStarted        = errors.New("reservation has not started yet")
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCompleted, ReservationCancelled},
}

func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch st := ReservationStatus(s); st {
	case ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled:
		return st, true
	}
	return "", false
}

// CanTransition reports whether the lifecycle graph has an edge from -> to.
func CanTransition(from, to ReservationStatus) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ReservationStatus) Terminal() bool {
	return len(reservationTransitions[s]) == 0
}

// Blocking reports whether a reservation in this status holds its slot.
func (s ReservationStatus) Blocking() bool {
	return s != ReservationCancelled
}

type Reservation struct {
	ID              string
	ServiceID       string
	ServiceName     string
	StaffID         string
	StaffName       string
	UserID          string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	Notes           string
	Date            time.Time
	Time            TimeOfDay
	DurationMinutes int
	Status          ReservationStatus
	CancelReason    string
	IdempotencyKey  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ConfirmedAt     *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
}

func (r Reservation) StartsAt(loc *time.Location) time.Time {
	return At(r.Date, r.Time, loc)
}

func (r Reservation) EndsAt(loc *time.Location) time.Time {
	return r.StartsAt(loc).Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// Transition moves the reservation to status to at instant now. Cancelling
// is only possible before the start; completing only after it.
func (r *Reservation) Transition(to ReservationStatus, now time.Time, loc *time.Location) error {
	if !CanTransition(r.Status, to) {
		return ErrInvalidTransition
	}
	start := r.StartsAt(loc)
	switch to {
	case ReservationCancelled:
		if !now.Before(start) {
			return ErrAlreadyStarted
		}
		r.CancelledAt = &now
	case ReservationCompleted:
		if now.Before(start) {
			return ErrNotStarted
		}
		r.CompletedAt = &now
	case ReservationConfirmed:
		r.ConfirmedAt = &now
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}
