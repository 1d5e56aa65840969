package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// MetadataOrderID is the metadata key carrying the order id on checkout
// sessions.
const MetadataOrderID = "order_id"

type StripeConfig struct {
	SecretKey  string `json:"-"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// StripeGateway runs payments through Stripe Checkout sessions. It owns its
// client instance instead of the package-level stripe.Key.
type StripeGateway struct {
	sc         *client.API
	successURL string
	cancelURL  string
}

func NewStripeGateway(cfg StripeConfig, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(cfg.SecretKey, backends)
	return &StripeGateway{sc: sc, successURL: cfg.SuccessURL, cancelURL: cfg.CancelURL}
}

func (g *StripeGateway) Initialize(ctx context.Context, req InitializeRequest) (Initialized, error) {
	if req.AmountCents <= 0 {
		return Initialized{}, fmt.Errorf("amount must be positive")
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withReference(g.successURL, req.ReferenceID)),
		CancelURL:         stripe.String(withReference(g.cancelURL, req.ReferenceID)),
		ClientReferenceID: stripe.String(req.ReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata(MetadataOrderID, req.ReferenceID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return Initialized{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return Initialized{URL: sess.URL, Reference: sess.ID}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, reference string) (Verification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.sc.CheckoutSessions.Get(reference, params)
	if err != nil {
		return Verification{}, fmt.Errorf("stripe: get checkout session: %w", err)
	}
	return verificationFromSession(sess), nil
}

func verificationFromSession(sess *stripe.CheckoutSession) Verification {
	v := Verification{
		Reference:   sess.ID,
		Status:      StatusUnpaid,
		AmountCents: sess.AmountTotal,
		Metadata:    sess.Metadata,
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		v.Status = StatusPaid
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		v.Status = StatusExpired
	}
	if v.Metadata == nil {
		v.Metadata = map[string]string{}
	}
	if v.Metadata[MetadataOrderID] == "" && sess.ClientReferenceID != "" {
		v.Metadata[MetadataOrderID] = sess.ClientReferenceID
	}
	return v
}

// withReference substitutes {ORDER_ID} so the storefront can show the right
// order after the redirect. Stripe fills {CHECKOUT_SESSION_ID} itself.
func withReference(url, orderID string) string {
	return strings.ReplaceAll(url, "{ORDER_ID}", orderID)
}
