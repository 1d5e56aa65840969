package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
)

type ReservationRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewReservationRepository(pool *db.Pool, outboxRepo *outbox.Repository) *ReservationRepository {
	return &ReservationRepository{pool: pool, outbox: outboxRepo}
}

const reservationSelect = `
	SELECT r.id::text, r.service_id::text, s.name, r.staff_id::text, st.name,
		COALESCE(r.user_id::text, ''), r.customer_name, r.customer_email, r.customer_phone, r.notes,
		r.reservation_date, r.start_minute, s.duration_minutes, r.status, r.cancel_reason,
		COALESCE(r.idempotency_key, ''), r.created_at, r.updated_at,
		r.confirmed_at, r.completed_at, r.cancelled_at
	FROM reservations r
	JOIN services s ON s.id = r.service_id
	JOIN staff st ON st.id = r.staff_id`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var (
		res    model.Reservation
		minute int
		status string
	)
	err := row.Scan(
		&res.ID, &res.ServiceID, &res.ServiceName, &res.StaffID, &res.StaffName,
		&res.UserID, &res.CustomerName, &res.CustomerEmail, &res.CustomerPhone, &res.Notes,
		&res.Date, &minute, &res.DurationMinutes, &status, &res.CancelReason,
		&res.IdempotencyKey, &res.CreatedAt, &res.UpdatedAt,
		&res.ConfirmedAt, &res.CompletedAt, &res.CancelledAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Time = model.TimeOfDay(minute)
	res.Status = model.ReservationStatus(status)
	return res, nil
}

// Insert stores a new reservation and its created event in one transaction.
// A unique violation on the active-slot index is model.ErrPersistenceConflict;
// one on the idempotency key is ErrIdempotencyKeyTaken.
func (r *ReservationRepository) Insert(ctx context.Context, res *model.Reservation, evt outbox.Event) error {
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO reservations
				(id, service_id, staff_id, user_id, customer_name, customer_email, customer_phone, notes,
				 reservation_date, start_minute, status, idempotency_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			RETURNING created_at, updated_at
		`, res.ID, res.ServiceID, res.StaffID, nullable(res.UserID), res.CustomerName, res.CustomerEmail,
			res.CustomerPhone, res.Notes, res.Date, int(res.Time), string(res.Status),
			nullable(res.IdempotencyKey), res.CreatedAt,
		).Scan(&res.CreatedAt, &res.UpdatedAt)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err == nil {
		return nil
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		if constraint == ConstraintReservationIdempotency {
			return ErrIdempotencyKeyTaken
		}
		return model.ErrPersistenceConflict
	}
	if db.IsForeignKeyViolation(err) {
		return model.Invalid("staff_id", "unknown staff or service")
	}
	return fmt.Errorf("insert reservation: %w", err)
}

func (r *ReservationRepository) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(r.pool.QueryRow(ctx, reservationSelect+` WHERE r.id = $1`, id))
	return res, mapNotFound(err)
}

func (r *ReservationRepository) FindByIdempotencyKey(ctx context.Context, key string) (model.Reservation, error) {
	res, err := scanReservation(r.pool.QueryRow(ctx, reservationSelect+` WHERE r.idempotency_key = $1`, key))
	return res, mapNotFound(err)
}

// ReservationFilter narrows List. Zero fields are ignored; From and To are
// inclusive calendar dates.
type ReservationFilter struct {
	From    *time.Time
	To      *time.Time
	Status  model.ReservationStatus
	StaffID string
	UserID  string
	Limit   int
}

func (r *ReservationRepository) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("r.reservation_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("r.reservation_date <= $%d", *f.To)
	}
	if f.Status != "" {
		add("r.status = $%d", string(f.Status))
	}
	if f.StaffID != "" {
		add("r.staff_id = $%d", f.StaffID)
	}
	if f.UserID != "" {
		add("r.user_id = $%d", f.UserID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	q := reservationSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY r.reservation_date, r.start_minute, st.name LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ActiveReservationsOn serves the availability calculator.
func (r *ReservationRepository) ActiveReservationsOn(ctx context.Context, date time.Time) ([]model.ReservedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, start_minute
		FROM reservations
		WHERE reservation_date = $1 AND status <> 'cancelled'
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReservedSlot
	for rows.Next() {
		var (
			slot   model.ReservedSlot
			minute int
		)
		if err := rows.Scan(&slot.StaffID, &minute); err != nil {
			return nil, err
		}
		slot.Time = model.TimeOfDay(minute)
		out = append(out, slot)
	}
	return out, rows.Err()
}

// Transition locks the reservation, lets apply change it in memory and
// persist the change together with the event apply returns.
func (r *ReservationRepository) Transition(ctx context.Context, id string, apply func(*model.Reservation) (outbox.Event, error)) (model.Reservation, error) {
	var res model.Reservation
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = scanReservation(tx.QueryRow(ctx, reservationSelect+` WHERE r.id = $1 FOR UPDATE OF r`, id))
		if err != nil {
			return mapNotFound(err)
		}
		evt, err := apply(&res)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE reservations
			SET status = $2, cancel_reason = $3, confirmed_at = $4, completed_at = $5, cancelled_at = $6,
				updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, res.ID, string(res.Status), res.CancelReason, res.ConfirmedAt, res.CompletedAt, res.CancelledAt,
		).Scan(&res.UpdatedAt)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return res, nil
}
