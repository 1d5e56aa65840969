package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/notification-service/internal/storage"
)

type fakeMail struct {
	sent []email.Message
	fail map[string]error
}

func (f *fakeMail) Deliver(_ context.Context, m email.Message) email.Result {
	if err := f.fail[m.To]; err != nil {
		return email.Result{Attempts: 4, Err: err}
	}
	f.sent = append(f.sent, m)
	return email.Result{Attempts: 1}
}

type fakeStore struct {
	rows []storage.Notification
	err  error
}

func (f *fakeStore) Insert(_ context.Context, n storage.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

var fixedNow = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newDispatcher(t *testing.T, inbox string) (*Dispatcher, *fakeMail, *fakeStore, *metrics.Notify) {
	t.Helper()
	mail := &fakeMail{fail: map[string]error{}}
	store := &fakeStore{}
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := New(mail, store, logger, m, Config{SalonName: "Studio Nine", SalonInbox: inbox}, func() time.Time { return fixedNow })
	return d, mail, store, m
}

func message(t *testing.T, topic, eventID string, payload any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return kafka.Message{
		Topic:   topic,
		Key:     []byte("agg"),
		Value:   raw,
		Headers: kafkax.MetaHeaders(kafkax.EventMeta{EventID: eventID, EventType: topic}),
	}
}

func reservation(status string) events.Reservation {
	return events.Reservation{
		ReservationID: "5f0c9a2e-0000-4000-8000-000000000001",
		ServiceName:   "Haircut",
		StaffName:     "Mia",
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Date:          "2026-05-04",
		Time:          "10:30",
		Status:        status,
	}
}

func TestReservationCreatedNotifiesCustomerAndSalon(t *testing.T) {
	d, mail, store, m := newDispatcher(t, "desk@studio.example")

	err := d.Handle(context.Background(), message(t, events.ReservationCreated, "evt-1",
		events.ReservationCreatedPayload{Reservation: reservation("pending")}))
	require.NoError(t, err)

	require.Len(t, mail.sent, 2)
	assert.Equal(t, "ana@example.com", mail.sent[0].To)
	assert.Equal(t, "Reservation received: Haircut on 2026-05-04", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Text, "10:30")
	assert.Contains(t, mail.sent[0].HTML, `<td align="right">Haircut</td>`)
	assert.Equal(t, "desk@studio.example", mail.sent[1].To)
	assert.Contains(t, mail.sent[1].Text, "Ana <ana@example.com>")

	require.Len(t, store.rows, 2)
	assert.Equal(t, "evt-1", store.rows[0].EventID)
	assert.Equal(t, storage.StatusSent, store.rows[0].Status)
	assert.Equal(t, fixedNow, *store.rows[0].SentAt)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Emails.WithLabelValues("sent")))
}

func TestReservationCreatedWithoutSalonInbox(t *testing.T) {
	d, mail, _, _ := newDispatcher(t, "")
	require.NoError(t, d.Handle(context.Background(), message(t, events.ReservationCreated, "evt-1",
		events.ReservationCreatedPayload{Reservation: reservation("pending")})))
	assert.Len(t, mail.sent, 1)
}

func TestStatusChanged(t *testing.T) {
	tests := []struct {
		status  string
		reason  string
		subject string
		body    string
	}{
		{status: "confirmed", subject: "Reservation confirmed: Haircut on 2026-05-04", body: "is confirmed"},
		{status: "cancelled", reason: "staff illness", subject: "Reservation cancelled: Haircut on 2026-05-04", body: "Reason: staff illness"},
		{status: "completed"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d, mail, store, _ := newDispatcher(t, "desk@studio.example")
			err := d.Handle(context.Background(), message(t, events.ReservationStatusChanged, "evt-"+tt.status,
				events.ReservationStatusChangedPayload{Reservation: reservation(tt.status), PreviousStatus: "pending", Reason: tt.reason}))
			require.NoError(t, err)

			if tt.subject == "" {
				assert.Empty(t, mail.sent)
				assert.Empty(t, store.rows)
				return
			}
			require.Len(t, mail.sent, 1)
			assert.Equal(t, "ana@example.com", mail.sent[0].To)
			assert.Equal(t, tt.subject, mail.sent[0].Subject)
			assert.Contains(t, mail.sent[0].Text, tt.body)
		})
	}
}

func TestOrderPaidReceipt(t *testing.T) {
	d, mail, _, _ := newDispatcher(t, "desk@studio.example")
	err := d.Handle(context.Background(), message(t, events.OrderPaid, "evt-9", events.OrderPaidPayload{
		OrderID:       "0b7e5d1c-aaaa-4bbb-8ccc-000000000009",
		CustomerName:  "Ana",
		CustomerEmail: "ana@example.com",
		Currency:      "usd",
		SubtotalCents: 4250,
		ShippingCents: 499,
		TaxCents:      340,
		TotalCents:    5089,
		Lines:         []events.OrderLine{{Name: "Argan oil", Quantity: 2, UnitPriceCents: 1500}, {Name: "Comb", Quantity: 1, UnitPriceCents: 1250}},
	}))
	require.NoError(t, err)

	require.Len(t, mail.sent, 1)
	m := mail.sent[0]
	assert.Equal(t, "Receipt for order 0b7e5d1c", m.Subject)
	assert.Contains(t, m.Text, "2 x Argan oil")
	assert.Contains(t, m.Text, "30.00 USD")
	assert.Contains(t, m.Text, "50.89 USD")
	assert.Contains(t, m.HTML, "Studio Nine")
}

func TestFailedDeliveryIsRecorded(t *testing.T) {
	d, mail, store, m := newDispatcher(t, "")
	mail.fail["ana@example.com"] = errors.New("relay unavailable")

	require.NoError(t, d.Handle(context.Background(), message(t, events.ReservationCreated, "evt-1",
		events.ReservationCreatedPayload{Reservation: reservation("pending")})))

	require.Len(t, store.rows, 1)
	assert.Equal(t, storage.StatusFailed, store.rows[0].Status)
	assert.Equal(t, 4, store.rows[0].Attempts)
	assert.Equal(t, "relay unavailable", store.rows[0].LastError)
	assert.Nil(t, store.rows[0].SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues("failed")))
}

func TestStoreErrorIsReturned(t *testing.T) {
	d, _, store, _ := newDispatcher(t, "")
	store.err = errors.New("db down")
	err := d.Handle(context.Background(), message(t, events.ReservationCreated, "evt-1",
		events.ReservationCreatedPayload{Reservation: reservation("pending")}))
	assert.ErrorContains(t, err, "record notification")
}

func TestBadPayloadsAreDropped(t *testing.T) {
	d, mail, _, _ := newDispatcher(t, "")

	bad := kafka.Message{Topic: events.OrderPaid, Value: []byte("{not json")}
	assert.NoError(t, d.Handle(context.Background(), bad))

	noRecipient := message(t, events.ReservationCreated, "evt-2", events.ReservationCreatedPayload{})
	assert.NoError(t, d.Handle(context.Background(), noRecipient))

	unknown := kafka.Message{Topic: "salon.unknown.v1", Value: []byte("{}")}
	assert.NoError(t, d.Handle(context.Background(), unknown))

	assert.Empty(t, mail.sent)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.05 EUR", money(5, "eur"))
	assert.Equal(t, "-12.30 USD", money(-1230, "usd"))
}
