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

type OrderRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewOrderRepository(pool *db.Pool, outboxRepo *outbox.Repository) *OrderRepository {
	return &OrderRepository{pool: pool, outbox: outboxRepo}
}

const orderSelect = `
	SELECT id::text, COALESCE(user_id::text, ''), customer_name, customer_email, shipping_address,
		status, currency, subtotal_cents, shipping_cents, tax_cents, total_cents,
		payment_reference, payment_url, paid_at, created_at, updated_at
	FROM orders`

func scanOrder(row pgx.Row) (model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CustomerName, &o.CustomerEmail, &o.ShippingAddress,
		&status, &o.Currency, &o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
		&o.PaymentReference, &o.PaymentURL, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = model.OrderStatus(status)
	return o, err
}

// Create reserves stock for every item and stores the order as
// pending_payment. Any item short on stock aborts the whole order with
// model.ErrOutOfStock.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, it := range o.Items {
			tag, err := tx.Exec(ctx, `
				UPDATE products
				SET stock = stock - $2, updated_at = now()
				WHERE id = $1 AND active AND stock >= $2
			`, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s", model.ErrOutOfStock, it.Name)
			}
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO orders
				(id, user_id, customer_name, customer_email, shipping_address, status, currency,
				 subtotal_cents, shipping_cents, tax_cents, total_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
			RETURNING created_at, updated_at
		`, o.ID, nullable(o.UserID), o.CustomerName, o.CustomerEmail, o.ShippingAddress, string(o.Status),
			o.Currency, o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents, o.CreatedAt,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, product_id, name, unit_price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5)
			`, o.ID, it.ProductID, it.Name, it.UnitPriceCents, it.Quantity)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, orderSelect+` WHERE id = $1`, id))
	if err != nil {
		return model.Order{}, mapNotFound(err)
	}
	o.Items, err = r.items(ctx, r.pool, o.ID)
	return o, err
}

func (r *OrderRepository) FindByPaymentReference(ctx context.Context, ref string) (model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, orderSelect+` WHERE payment_reference = $1`, ref))
	if err != nil {
		return model.Order{}, mapNotFound(err)
	}
	o.Items, err = r.items(ctx, r.pool, o.ID)
	return o, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *OrderRepository) items(ctx context.Context, q querier, orderID string) ([]model.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id::text, name, unit_price_cents, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY name
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPriceCents, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type OrderFilter struct {
	UserID string
	Status model.OrderStatus
	Limit  int
}

// List returns orders newest first, without items.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := orderSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepository) SetPayment(ctx context.Context, id, reference, url string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_reference = $2, payment_url = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending_payment'
	`, id, reference, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInvalidOrderTransition
	}
	return nil
}

// Transition locks the order and moves it to status to. Cancelling puts the
// reserved stock back. When event is non-nil its result is written to the
// outbox in the same transaction.
func (r *OrderRepository) Transition(ctx context.Context, id string, to model.OrderStatus, now time.Time, event func(model.Order) (*outbox.Event, error)) (model.Order, error) {
	var o model.Order
	err := r.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, err = scanOrder(tx.QueryRow(ctx, orderSelect+` WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return mapNotFound(err)
		}
		if !model.CanTransitionOrder(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidOrderTransition, o.Status, to)
		}
		if o.Items, err = r.items(ctx, tx, o.ID); err != nil {
			return err
		}

		o.Status = to
		if to == model.OrderPaid {
			o.PaidAt = &now
		}
		err = tx.QueryRow(ctx, `
			UPDATE orders SET status = $2, paid_at = $3, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, o.ID, string(o.Status), o.PaidAt).Scan(&o.UpdatedAt)
		if err != nil {
			return err
		}

		if to == model.OrderCancelled {
			if _, err := tx.Exec(ctx, `
				UPDATE products p
				SET stock = p.stock + oi.quantity, updated_at = now()
				FROM order_items oi
				WHERE oi.order_id = $1 AND p.id = oi.product_id
			`, o.ID); err != nil {
				return err
			}
		}

		if event == nil {
			return nil
		}
		evt, err := event(o)
		if err != nil || evt == nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, *evt)
	})
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// UnpaidBefore lists pending_payment orders created before cutoff.
func (r *OrderRepository) UnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text FROM orders
		WHERE status = 'pending_payment' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// RecordPaymentEvent stores a provider webhook event and reports whether it
// was new. Replays of the same provider event id return false.
func (r *OrderRepository) RecordPaymentEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO payment_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, provider, eventID, eventType, payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
