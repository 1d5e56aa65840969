// Package booking creates reservations and moves them through their
// lifecycle. The unique index on active slots is the final arbiter; the
// availability check here only rejects obvious conflicts early.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

type Store interface {
	Insert(ctx context.Context, res *model.Reservation, evt outbox.Event) error
	Get(ctx context.Context, id string) (model.Reservation, error)
	FindByIdempotencyKey(ctx context.Context, key string) (model.Reservation, error)
	List(ctx context.Context, f storage.ReservationFilter) ([]model.Reservation, error)
	Transition(ctx context.Context, id string, apply func(*model.Reservation) (outbox.Event, error)) (model.Reservation, error)
}

type Catalog interface {
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	Qualified(ctx context.Context, staffID, serviceID string) (bool, error)
}

type SlotChecker interface {
	IsSlotAvailable(ctx context.Context, staffID string, date time.Time, t model.TimeOfDay) (bool, error)
	Policy() availability.SlotPolicy
}

// Actor is the caller of a state-changing operation. A zero Actor is the
// system itself (maintenance jobs).
type Actor struct {
	UserID string
	Email  string
	Role   string
}

var System = Actor{Role: "system"}

func (a Actor) privileged() bool {
	return a.Role == auth.RoleAdmin || a.Role == System.Role
}

// owns reports whether a customer may see or cancel res. Guest bookings
// belong to whoever holds an account with the same email.
func (a Actor) owns(res model.Reservation) bool {
	if res.UserID != "" {
		return a.UserID != "" && res.UserID == a.UserID
	}
	return a.Email != "" && strings.EqualFold(res.CustomerEmail, a.Email)
}

type Service struct {
	store   Store
	catalog Catalog
	slots   SlotChecker
	logger  *slog.Logger
	metrics *metrics.Salon
	now     func() time.Time
}

func NewService(store Store, catalog Catalog, slots SlotChecker, logger *slog.Logger, m *metrics.Salon, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, catalog: catalog, slots: slots, logger: logger, metrics: m, now: now}
}

type CreateInput struct {
	ServiceID      string
	StaffID        string
	Date           string
	Time           string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Notes          string
	UserID         string
	IdempotencyKey string
}

type CreateResult struct {
	Reservation model.Reservation
	// Replayed is set when the idempotency key matched an earlier request.
	Replayed bool
}

const maxIdempotencyKeyLen = 200

func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	res, err := s.validate(ctx, in)
	if err != nil {
		s.metrics.Reservation("invalid")
		return CreateResult{}, err
	}

	if res.IdempotencyKey != "" {
		prev, err := s.store.FindByIdempotencyKey(ctx, res.IdempotencyKey)
		switch {
		case err == nil:
			return s.replay(prev, res)
		case !errors.Is(err, model.ErrNotFound):
			return CreateResult{}, err
		}
	}

	if err := s.checkCatalog(ctx, &res); err != nil {
		s.metrics.Reservation("invalid")
		return CreateResult{}, err
	}

	ok, err := s.slots.IsSlotAvailable(ctx, res.StaffID, res.Date, res.Time)
	if err != nil {
		return CreateResult{}, fmt.Errorf("check slot: %w", err)
	}
	if !ok {
		s.metrics.Reservation("slot_conflict")
		return CreateResult{}, model.ErrSlotConflict
	}

	evt, err := outbox.NewEvent("reservation", res.ID, events.ReservationCreated, events.ReservationCreatedPayload{
		Reservation: eventReservation(res),
		CreatedAt:   res.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return CreateResult{}, err
	}

	err = s.store.Insert(ctx, &res, evt)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrIdempotencyKeyTaken):
		// A concurrent request with the same key won the race.
		prev, ferr := s.store.FindByIdempotencyKey(ctx, res.IdempotencyKey)
		if ferr != nil {
			return CreateResult{}, ferr
		}
		return s.replay(prev, res)
	case errors.Is(err, model.ErrPersistenceConflict):
		s.metrics.Reservation("persistence_conflict")
		s.logger.InfoContext(ctx, "reservation lost slot race",
			"staff_id", res.StaffID, "date", model.FormatDate(res.Date), "time", res.Time.String())
		return CreateResult{}, err
	default:
		return CreateResult{}, err
	}

	s.metrics.Reservation("created")
	s.logger.InfoContext(ctx, "reservation created",
		"reservation_id", res.ID, "staff_id", res.StaffID, "date", model.FormatDate(res.Date), "time", res.Time.String())
	return CreateResult{Reservation: res}, nil
}

// replay returns the reservation stored under a reused idempotency key,
// provided the new request asks for the same booking by the same caller.
func (s *Service) replay(prev, res model.Reservation) (CreateResult, error) {
	if !sameRequest(prev, res) {
		s.metrics.Reservation("idempotency_mismatch")
		return CreateResult{}, model.ErrIdempotencyMismatch
	}
	s.metrics.Reservation("replayed")
	return CreateResult{Reservation: prev, Replayed: true}, nil
}

func sameRequest(prev, res model.Reservation) bool {
	return prev.ServiceID == res.ServiceID &&
		prev.StaffID == res.StaffID &&
		prev.Date.Equal(res.Date) &&
		prev.Time == res.Time &&
		strings.EqualFold(prev.CustomerEmail, res.CustomerEmail) &&
		prev.UserID == res.UserID
}

func (s *Service) validate(ctx context.Context, in CreateInput) (model.Reservation, error) {
	now := s.now()
	policy := s.slots.Policy()

	res := model.Reservation{
		ID:             uuid.NewString(),
		ServiceID:      strings.TrimSpace(in.ServiceID),
		StaffID:        strings.TrimSpace(in.StaffID),
		UserID:         in.UserID,
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerEmail:  strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerPhone:  strings.TrimSpace(in.CustomerPhone),
		Notes:          strings.TrimSpace(in.Notes),
		Status:         model.ReservationPending,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      now.UTC(),
	}

	if !validID(res.ServiceID) {
		return res, model.Invalid("service_id", "is required")
	}
	if !validID(res.StaffID) {
		return res, model.Invalid("staff_id", "is required")
	}
	date, err := model.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return res, model.Invalid("date", "must be YYYY-MM-DD")
	}
	res.Date = date
	t, err := model.ParseTimeOfDay(strings.TrimSpace(in.Time))
	if err != nil {
		return res, model.Invalid("time", "must be HH:MM")
	}
	res.Time = t

	if err := policy.ValidateDate(date, now); err != nil {
		if errors.Is(err, availability.ErrDateInPast) {
			return res, model.Invalid("date", "must not be in the past")
		}
		return res, model.Invalid("date", fmt.Sprintf("must be within %d days", policy.MaxAdvanceDays))
	}
	if !policy.Bookable(date, t, now) {
		return res, model.Invalid("time", fmt.Sprintf("must be at least %s from now", policy.MinLeadTime))
	}

	if res.CustomerName == "" {
		return res, model.Invalid("customer_name", "is required")
	}
	if len(res.CustomerName) > 200 {
		return res, model.Invalid("customer_name", "is too long")
	}
	if addr, err := mail.ParseAddress(res.CustomerEmail); err != nil || addr.Address != res.CustomerEmail {
		return res, model.Invalid("customer_email", "must be a valid email address")
	}
	if len(res.IdempotencyKey) > maxIdempotencyKeyLen {
		return res, model.Invalid("idempotency_key", "is too long")
	}
	return res, nil
}

func (s *Service) checkCatalog(ctx context.Context, res *model.Reservation) error {
	svc, err := s.catalog.GetService(ctx, res.ServiceID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !svc.Active) {
		return model.Invalid("service_id", "unknown service")
	}
	if err != nil {
		return err
	}
	staff, err := s.catalog.GetStaff(ctx, res.StaffID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !staff.Active) {
		return model.Invalid("staff_id", "unknown staff member")
	}
	if err != nil {
		return err
	}
	ok, err := s.catalog.Qualified(ctx, res.StaffID, res.ServiceID)
	if err != nil {
		return err
	}
	if !ok {
		return model.Invalid("staff_id", "does not offer this service")
	}
	res.ServiceName = svc.Name
	res.DurationMinutes = svc.DurationMinutes
	res.StaffName = staff.Name
	return nil
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (model.Reservation, error) {
	if !validID(id) {
		return model.Reservation{}, model.ErrNotFound
	}
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !actor.privileged() && !actor.owns(res) {
		return model.Reservation{}, model.ErrForbidden
	}
	return res, nil
}

func (s *Service) List(ctx context.Context, f storage.ReservationFilter) ([]model.Reservation, error) {
	return s.store.List(ctx, f)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.store.List(ctx, storage.ReservationFilter{UserID: userID})
}

func (s *Service) Confirm(ctx context.Context, id string, actor Actor) (model.Reservation, error) {
	return s.transition(ctx, id, actor, model.ReservationConfirmed, "")
}

func (s *Service) Complete(ctx context.Context, id string, actor Actor) (model.Reservation, error) {
	return s.transition(ctx, id, actor, model.ReservationCompleted, "")
}

func (s *Service) Cancel(ctx context.Context, id string, actor Actor, reason string) (model.Reservation, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > 500 {
		return model.Reservation{}, model.Invalid("reason", "is too long")
	}
	return s.transition(ctx, id, actor, model.ReservationCancelled, reason)
}

func (s *Service) transition(ctx context.Context, id string, actor Actor, to model.ReservationStatus, reason string) (model.Reservation, error) {
	if !validID(id) {
		return model.Reservation{}, model.ErrNotFound
	}
	// Only cancellation is open to customers, and only for their own bookings.
	if !actor.privileged() && to != model.ReservationCancelled {
		return model.Reservation{}, model.ErrForbidden
	}

	loc := s.slots.Policy().Location
	res, err := s.store.Transition(ctx, id, func(res *model.Reservation) (outbox.Event, error) {
		if !actor.privileged() && !actor.owns(*res) {
			return outbox.Event{}, model.ErrForbidden
		}
		prev := res.Status
		now := s.now()
		if err := res.Transition(to, now, loc); err != nil {
			return outbox.Event{}, err
		}
		if to == model.ReservationCancelled {
			res.CancelReason = reason
		}
		return outbox.NewEvent("reservation", res.ID, events.ReservationStatusChanged, events.ReservationStatusChangedPayload{
			Reservation:    eventReservation(*res),
			PreviousStatus: string(prev),
			Reason:         reason,
			ChangedAt:      now.UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.metrics.Reservation(string(to))
	s.logger.InfoContext(ctx, "reservation status changed",
		"reservation_id", res.ID, "status", string(res.Status), "actor_role", actor.Role)
	return res, nil
}

// CompletePast marks confirmed reservations whose end time has passed as
// completed and returns how many changed.
func (s *Service) CompletePast(ctx context.Context, limit int) (int, error) {
	policy := s.slots.Policy()
	now := s.now()
	today := policy.Today(now)
	due, err := s.store.List(ctx, storage.ReservationFilter{
		To:     &today,
		Status: model.ReservationConfirmed,
		Limit:  limit,
	})
	if err != nil {
		return 0, err
	}

	done := 0
	for _, res := range due {
		if res.EndsAt(policy.Location).After(now) {
			continue
		}
		if _, err := s.transition(ctx, res.ID, System, model.ReservationCompleted, ""); err != nil {
			if errors.Is(err, model.ErrInvalidTransition) {
				continue
			}
			return done, err
		}
		done++
	}
	return done, nil
}

func eventReservation(res model.Reservation) events.Reservation {
	return events.Reservation{
		ReservationID: res.ID,
		ServiceID:     res.ServiceID,
		ServiceName:   res.ServiceName,
		StaffID:       res.StaffID,
		StaffName:     res.StaffName,
		CustomerName:  res.CustomerName,
		CustomerEmail: res.CustomerEmail,
		Date:          model.FormatDate(res.Date),
		Time:          res.Time.String(),
		Status:        string(res.Status),
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
