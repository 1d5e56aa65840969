package booking

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

// memStore mimics the reservations table: the partial unique index and the
// idempotency key constraint.
type memStore struct {
	mu     sync.Mutex
	rows   map[string]model.Reservation
	events []outbox.Event
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]model.Reservation{}}
}

func (m *memStore) Insert(_ context.Context, res *model.Reservation, evt outbox.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if res.IdempotencyKey != "" && r.IdempotencyKey == res.IdempotencyKey {
			return storage.ErrIdempotencyKeyTaken
		}
		if r.Status.Blocking() && r.StaffID == res.StaffID && r.Date.Equal(res.Date) && r.Time == res.Time {
			return model.ErrPersistenceConflict
		}
	}
	res.UpdatedAt = res.CreatedAt
	m.rows[res.ID] = *res
	m.events = append(m.events, evt)
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Reservation{}, model.ErrNotFound
	}
	return r, nil
}

func (m *memStore) FindByIdempotencyKey(_ context.Context, key string) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.IdempotencyKey == key {
			return r, nil
		}
	}
	return model.Reservation{}, model.ErrNotFound
}

func (m *memStore) List(_ context.Context, f storage.ReservationFilter) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Reservation
	for _, r := range m.rows {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.To != nil && r.Date.After(*f.To) {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Transition(_ context.Context, id string, apply func(*model.Reservation) (outbox.Event, error)) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return model.Reservation{}, model.ErrNotFound
	}
	evt, err := apply(&r)
	if err != nil {
		return model.Reservation{}, err
	}
	m.rows[id] = r
	m.events = append(m.events, evt)
	return r, nil
}

type fakeCatalog struct {
	services map[string]model.Service
	staff    map[string]model.Staff
}

func (f *fakeCatalog) GetService(_ context.Context, id string) (model.Service, error) {
	s, ok := f.services[id]
	if !ok {
		return model.Service{}, model.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) GetStaff(_ context.Context, id string) (model.Staff, error) {
	s, ok := f.staff[id]
	if !ok {
		return model.Staff{}, model.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) Qualified(_ context.Context, staffID, serviceID string) (bool, error) {
	ids := f.staff[staffID].ServiceIDs
	if len(ids) == 0 {
		return true, nil
	}
	for _, id := range ids {
		if id == serviceID {
			return true, nil
		}
	}
	return false, nil
}

// storeSlots answers from the store, like the real calculator does.
type storeSlots struct {
	store   *memStore
	policy  availability.SlotPolicy
	barrier *sync.WaitGroup
}

func (s *storeSlots) IsSlotAvailable(_ context.Context, staffID string, date time.Time, t model.TimeOfDay) (bool, error) {
	s.store.mu.Lock()
	taken := false
	for _, r := range s.store.rows {
		if r.Status.Blocking() && r.StaffID == staffID && r.Date.Equal(date) && r.Time == t {
			taken = true
		}
	}
	s.store.mu.Unlock()
	if s.barrier != nil {
		s.barrier.Done()
		s.barrier.Wait()
	}
	return !taken, nil
}

func (s *storeSlots) Policy() availability.SlotPolicy { return s.policy }

var (
	serviceID = uuid.NewString()
	staffID   = uuid.NewString()
	otherID   = uuid.NewString()
	// Monday 2026-05-04 08:00 UTC.
	clock = func() time.Time { return time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC) }
)

type fixture struct {
	svc   *Service
	store *memStore
	slots *storeSlots
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	policy, err := availability.DefaultSlotPolicy().Normalize()
	require.NoError(t, err)
	store := newMemStore()
	slots := &storeSlots{store: store, policy: policy}
	cat := &fakeCatalog{
		services: map[string]model.Service{serviceID: {ID: serviceID, Name: "Cut", DurationMinutes: 45, Active: true}},
		staff: map[string]model.Staff{
			staffID: {ID: staffID, Name: "Ana", Active: true},
			otherID: {ID: otherID, Name: "Bea", Active: true, ServiceIDs: []string{uuid.NewString()}},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		svc:   NewService(store, cat, slots, logger, metrics.Discard(), clock),
		store: store,
		slots: slots,
	}
}

func validInput() CreateInput {
	return CreateInput{
		ServiceID:     serviceID,
		StaffID:       staffID,
		Date:          "2026-05-04",
		Time:          "14:00",
		CustomerName:  "Dana",
		CustomerEmail: "Dana@Example.com",
	}
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	res := out.Reservation
	assert.Equal(t, model.ReservationPending, res.Status)
	assert.Equal(t, "dana@example.com", res.CustomerEmail)
	assert.Equal(t, "Cut", res.ServiceName)
	assert.Equal(t, 45, res.DurationMinutes)

	require.Len(t, f.store.events, 1)
	evt := f.store.events[0]
	assert.Equal(t, events.ReservationCreated, evt.EventType)
	var payload events.ReservationCreatedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, res.ID, payload.ReservationID)
	assert.Equal(t, "14:00", payload.Time)
	assert.Equal(t, "Ana", payload.StaffName)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"missing service", func(in *CreateInput) { in.ServiceID = "" }, "service_id"},
		{"bad date", func(in *CreateInput) { in.Date = "04/05/2026" }, "date"},
		{"bad time", func(in *CreateInput) { in.Time = "2pm" }, "time"},
		{"past date", func(in *CreateInput) { in.Date = "2026-05-03" }, "date"},
		{"beyond horizon", func(in *CreateInput) { in.Date = "2026-12-31" }, "date"},
		{"inside lead time", func(in *CreateInput) { in.Time = "08:30" }, "time"},
		{"missing name", func(in *CreateInput) { in.CustomerName = "  " }, "customer_name"},
		{"bad email", func(in *CreateInput) { in.CustomerEmail = "dana" }, "customer_email"},
		{"unknown service", func(in *CreateInput) { in.ServiceID = uuid.NewString() }, "service_id"},
		{"unknown staff", func(in *CreateInput) { in.StaffID = uuid.NewString() }, "staff_id"},
		{"unqualified staff", func(in *CreateInput) { in.StaffID = otherID }, "staff_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			tt.mut(&in)
			_, err := f.svc.Create(context.Background(), in)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, f.store.rows)
		})
	}
}

func TestCreateTakenSlotIsSlotConflict(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.CustomerEmail = "eve@example.com"
	_, err = f.svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrSlotConflict)
	assert.Equal(t, model.ErrSlotConflict.Error(), model.ErrPersistenceConflict.Error())
}

func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	var barrier sync.WaitGroup
	barrier.Add(2)
	f.slots.barrier = &barrier

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, model.ErrPersistenceConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Len(t, f.store.rows, 1)
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	in.IdempotencyKey = "key-1"

	first, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)
	assert.Len(t, f.store.rows, 1)
	assert.Len(t, f.store.events, 1)
}

func TestIdempotencyKeyReusedWithDifferentRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := validInput()
	in.IdempotencyKey = "checkout-1"
	_, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	other := validInput()
	other.IdempotencyKey = "checkout-1"
	other.CustomerEmail = "mallory@example.com"
	other.Time = "15:00"
	out, err := f.svc.Create(ctx, other)
	require.ErrorIs(t, err, model.ErrIdempotencyMismatch)
	assert.Empty(t, out.Reservation.ID)

	sameSlot := in
	sameSlot.UserID = uuid.NewString()
	_, err = f.svc.Create(ctx, sameSlot)
	require.ErrorIs(t, err, model.ErrIdempotencyMismatch)

	// Email matching ignores case.
	retry := in
	retry.CustomerEmail = "dana@example.com"
	replayed, err := f.svc.Create(ctx, retry)
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Len(t, f.store.rows, 1)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, out.Reservation.ID, Actor{Role: auth.RoleAdmin}, "customer called")
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, validInput())
	assert.NoError(t, err)
}

func TestLifecycleAndPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := validInput()
	in.UserID = uuid.NewString()
	out, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	id := out.Reservation.ID

	owner := Actor{UserID: in.UserID, Role: auth.RoleCustomer}
	stranger := Actor{UserID: uuid.NewString(), Role: auth.RoleCustomer, Email: "dana@example.com"}
	admin := Actor{UserID: uuid.NewString(), Role: auth.RoleAdmin}

	_, err = f.svc.Get(ctx, id, stranger)
	assert.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.svc.Get(ctx, id, owner)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, "not-a-uuid", admin)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.svc.Confirm(ctx, id, owner)
	assert.ErrorIs(t, err, model.ErrForbidden)
	res, err := f.svc.Confirm(ctx, id, admin)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, res.Status)

	_, err = f.svc.Complete(ctx, id, admin)
	assert.ErrorIs(t, err, model.ErrNotStarted)

	_, err = f.svc.Cancel(ctx, id, stranger, "")
	assert.ErrorIs(t, err, model.ErrForbidden)
	res, err = f.svc.Cancel(ctx, id, owner, "running late")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)
	assert.Equal(t, "running late", res.CancelReason)

	_, err = f.svc.Confirm(ctx, id, admin)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	last := f.store.events[len(f.store.events)-1]
	var payload events.ReservationStatusChangedPayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "confirmed", payload.PreviousStatus)
	assert.Equal(t, "cancelled", payload.Status)
}

func TestGuestReservationOwnedByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, out.Reservation.ID, Actor{UserID: uuid.NewString(), Email: "DANA@example.com", Role: auth.RoleCustomer})
	assert.NoError(t, err)
}

func TestCompletePast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out, err := f.svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, out.Reservation.ID, Actor{Role: auth.RoleAdmin})
	require.NoError(t, err)

	n, err := f.svc.CompletePast(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	// 14:00 + 45m has passed by 15:00.
	f.svc.now = func() time.Time { return time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC) }
	n, err = f.svc.CompletePast(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.ReservationCompleted, f.store.rows[out.Reservation.ID].Status)
}
