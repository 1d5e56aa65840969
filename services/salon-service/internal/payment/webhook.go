package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookEvent is the part of a Stripe event the order flow reacts to.
type WebhookEvent struct {
	ID           string
	Type         string
	OccurredAt   time.Time
	Verification Verification
	Payload      []byte
}

// ParseWebhook verifies the Stripe-Signature header against secret and
// decodes checkout session events. Other event types come back with an empty
// Verification.
func ParseWebhook(payload []byte, signature, secret string, tolerance time.Duration) (WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithTolerance(payload, signature, secret, tolerance)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := WebhookEvent{
		ID:         evt.ID,
		Type:       string(evt.Type),
		OccurredAt: time.Unix(evt.Created, 0).UTC(),
		Payload:    payload,
	}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Verification = verificationFromSession(&sess)
		if out.Type == EventCheckoutExpired {
			out.Verification.Status = StatusExpired
		}
	}
	return out, nil
}
