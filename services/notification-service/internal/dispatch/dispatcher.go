// Package dispatch turns salon events into customer email and records each
// delivery.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/storage"
)

type Deliverer interface {
	Deliver(ctx context.Context, m email.Message) email.Result
}

type Store interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Config struct {
	SalonName  string
	SalonInbox string
}

type Dispatcher struct {
	mail       Deliverer
	store      Store
	logger     *slog.Logger
	metrics    *metrics.Notify
	salonName  string
	salonInbox string
	now        func() time.Time
}

func New(mail Deliverer, store Store, logger *slog.Logger, m *metrics.Notify, cfg Config, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if cfg.SalonName == "" {
		cfg.SalonName = "SalonBook"
	}
	return &Dispatcher{
		mail:       mail,
		store:      store,
		logger:     logger,
		metrics:    m,
		salonName:  cfg.SalonName,
		salonInbox: cfg.SalonInbox,
		now:        now,
	}
}

// Handle renders and delivers the email for one event. Undecodable payloads
// are logged and dropped; only a failure to record a delivery is returned.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	msgs, err := d.render(meta.EventType, msg.Value)
	if err != nil {
		d.logger.Error("invalid event payload", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	for _, m := range msgs {
		if err := d.deliver(ctx, meta, m); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) render(eventType string, raw []byte) ([]email.Message, error) {
	switch eventType {
	case events.ReservationCreated:
		var p events.ReservationCreatedPayload
		if err := decode(raw, &p, &p.CustomerEmail); err != nil {
			return nil, err
		}
		return d.renderReservationCreated(p)
	case events.ReservationStatusChanged:
		var p events.ReservationStatusChangedPayload
		if err := decode(raw, &p, &p.CustomerEmail); err != nil {
			return nil, err
		}
		return d.renderStatusChanged(p)
	case events.OrderPaid:
		var p events.OrderPaidPayload
		if err := decode(raw, &p, &p.CustomerEmail); err != nil {
			return nil, err
		}
		return d.renderOrderPaid(p)
	default:
		return nil, fmt.Errorf("unsupported event type %q", eventType)
	}
}

func decode(raw []byte, dst any, recipient *string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if *recipient == "" {
		return fmt.Errorf("missing customer_email")
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, meta kafkax.EventMeta, m email.Message) error {
	res := d.mail.Deliver(ctx, m)
	n := storage.Notification{
		EventID:   meta.EventID,
		EventType: meta.EventType,
		Channel:   "email",
		Recipient: m.To,
		Subject:   m.Subject,
		Attempts:  res.Attempts,
	}
	if res.Err != nil {
		n.Status = storage.StatusFailed
		n.LastError = res.Err.Error()
		d.logger.Error("email delivery failed", "err", res.Err, "event_id", meta.EventID, "to", m.To, "attempts", res.Attempts)
	} else {
		n.Status = storage.StatusSent
		sent := d.now().UTC()
		n.SentAt = &sent
		d.logger.Info("email sent", "event_id", meta.EventID, "to", m.To, "subject", m.Subject, "attempts", res.Attempts)
	}
	d.metrics.Email(n.Status)

	// The delivery outcome is recorded even when ctx was cancelled mid-retry.
	if err := d.store.Insert(context.WithoutCancel(ctx), n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}
