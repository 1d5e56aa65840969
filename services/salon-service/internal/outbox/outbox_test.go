package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
)

func TestNewEventMarshalsPayload(t *testing.T) {
	evt, err := NewEvent("reservation", "r-1", events.ReservationCreated, events.ReservationCreatedPayload{
		Reservation: events.Reservation{ReservationID: "r-1", Time: "09:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, events.ReservationCreated, evt.EventType)

	var got events.ReservationCreatedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &got))
	assert.Equal(t, "09:00", got.Time)
}

func TestMessageCarriesMetaHeaders(t *testing.T) {
	msg := Message(context.Background(), Record{
		EventID:     "e-1",
		AggregateID: "order-7",
		EventType:   events.OrderPaid,
		Payload:     []byte(`{}`),
		Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})

	assert.Equal(t, events.OrderPaid, msg.Topic)
	assert.Equal(t, "order-7", string(msg.Key))
	meta := kafkax.ExtractEventMeta(msg)
	assert.Equal(t, "e-1", meta.EventID)
	assert.Equal(t, events.OrderPaid, meta.EventType)
}
