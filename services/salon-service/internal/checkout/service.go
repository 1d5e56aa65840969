package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/events"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

var ErrAmountMismatch = errors.New("paid amount does not match order total")

const maxQuantity = 100

type Orders interface {
	Create(ctx context.Context, o *model.Order) error
	Get(ctx context.Context, id string) (model.Order, error)
	FindByPaymentReference(ctx context.Context, ref string) (model.Order, error)
	List(ctx context.Context, f storage.OrderFilter) ([]model.Order, error)
	SetPayment(ctx context.Context, id, reference, url string) error
	Transition(ctx context.Context, id string, to model.OrderStatus, now time.Time, event func(model.Order) (*outbox.Event, error)) (model.Order, error)
	UnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
	RecordPaymentEvent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error)
}

type Products interface {
	ProductsByID(ctx context.Context, ids []string) (map[string]model.Product, error)
}

type Service struct {
	orders   Orders
	products Products
	gateway  payment.Gateway
	pricing  PricingConfig
	logger   *slog.Logger
	metrics  *metrics.Salon
	now      func() time.Time
}

func NewService(orders Orders, products Products, gateway payment.Gateway, pricing PricingConfig, logger *slog.Logger, m *metrics.Salon, now func() time.Time) *Service {
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:   orders,
		products: products,
		gateway:  gateway,
		pricing:  pricing.normalized(),
		logger:   logger,
		metrics:  m,
		now:      now,
	}
}

func (s *Service) Pricing() PricingConfig {
	return s.pricing
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	UserID          string
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	Items           []ItemInput
}

func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (model.Order, error) {
	o := model.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		Status:          model.OrderPendingPayment,
		Currency:        s.pricing.Currency,
		CreatedAt:       s.now().UTC(),
	}
	if o.CustomerName == "" {
		return model.Order{}, model.Invalid("customer_name", "is required")
	}
	if addr, err := mail.ParseAddress(o.CustomerEmail); err != nil || addr.Address != o.CustomerEmail {
		return model.Order{}, model.Invalid("customer_email", "must be a valid email address")
	}
	if len(in.Items) == 0 {
		return model.Order{}, model.Invalid("items", "must not be empty")
	}

	qty := map[string]int{}
	for _, it := range in.Items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return model.Order{}, model.Invalid("items", "unknown product")
		}
		if it.Quantity < 1 || it.Quantity > maxQuantity {
			return model.Order{}, model.Invalid("items", fmt.Sprintf("quantity must be between 1 and %d", maxQuantity))
		}
		qty[it.ProductID] += it.Quantity
	}
	ids := make([]string, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products, err := s.products.ProductsByID(ctx, ids)
	if err != nil {
		return model.Order{}, err
	}
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.Active {
			return model.Order{}, model.Invalid("items", "unknown product")
		}
		if p.Stock < qty[id] {
			return model.Order{}, fmt.Errorf("%w: %s", model.ErrOutOfStock, p.Name)
		}
		o.Items = append(o.Items, model.OrderItem{ProductID: id, Name: p.Name, UnitPriceCents: p.PriceCents, Quantity: qty[id]})
		lines = append(lines, Line{UnitPriceCents: p.PriceCents, Quantity: qty[id]})
	}

	t := Quote(lines, s.pricing)
	o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents = t.SubtotalCents, t.ShippingCents, t.TaxCents, t.TotalCents

	if err := s.orders.Create(ctx, &o); err != nil {
		return model.Order{}, err
	}
	s.metrics.Order(string(o.Status))
	s.logger.InfoContext(ctx, "order placed", "order_id", o.ID, "total_cents", o.TotalCents, "items", len(o.Items))
	return o, nil
}

// Actor mirrors booking.Actor for order access checks.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) canSee(o model.Order) bool {
	return a.Role == auth.RoleAdmin || o.UserID == "" || (a.UserID != "" && o.UserID == a.UserID)
}

func (s *Service) Get(ctx context.Context, id string, actor Actor) (model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Order{}, model.ErrNotFound
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if !actor.canSee(o) {
		return model.Order{}, model.ErrForbidden
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f storage.OrderFilter) ([]model.Order, error) {
	return s.orders.List(ctx, f)
}

// InitializePayment opens a checkout session for a pending order. Calling it
// again returns the session already opened.
func (s *Service) InitializePayment(ctx context.Context, id string, actor Actor) (model.Order, error) {
	o, err := s.Get(ctx, id, actor)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderPendingPayment {
		return model.Order{}, fmt.Errorf("%w: order is %s", model.ErrInvalidOrderTransition, o.Status)
	}
	if o.PaymentURL != "" {
		return o, nil
	}

	init, err := s.gateway.Initialize(ctx, payment.InitializeRequest{
		ReferenceID:    o.ID,
		AmountCents:    o.TotalCents,
		Currency:       o.Currency,
		Description:    fmt.Sprintf("Order %s", o.ID[:8]),
		CustomerEmail:  o.CustomerEmail,
		IdempotencyKey: "order-" + o.ID,
	})
	if err != nil {
		return model.Order{}, err
	}
	if err := s.orders.SetPayment(ctx, o.ID, init.Reference, init.URL); err != nil {
		return model.Order{}, err
	}
	o.PaymentReference, o.PaymentURL = init.Reference, init.URL
	s.logger.InfoContext(ctx, "payment initialized", "order_id", o.ID, "reference", init.Reference)
	return o, nil
}

// VerifyPayment asks the processor about reference and marks the order paid
// when it is. Repeated calls are harmless.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (model.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return model.Order{}, model.Invalid("reference", "is required")
	}
	o, err := s.orders.FindByPaymentReference(ctx, reference)
	if err != nil {
		return model.Order{}, err
	}
	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return model.Order{}, err
	}
	switch v.Status {
	case payment.StatusPaid:
		return s.confirmPaid(ctx, o.ID, v.AmountCents)
	case payment.StatusExpired:
		return s.cancelUnpaid(ctx, o.ID, "payment session expired")
	}
	return o, nil
}

// HandleWebhook applies a verified processor event. It reports false when
// the event had already been recorded.
func (s *Service) HandleWebhook(ctx context.Context, evt payment.WebhookEvent) (bool, error) {
	orderID := evt.Verification.Metadata[payment.MetadataOrderID]
	switch evt.Type {
	case payment.EventCheckoutCompleted:
		if evt.Verification.Status != payment.StatusPaid {
			// Delayed payment methods complete the session before paying.
			s.logger.InfoContext(ctx, "checkout completed without payment", "event_id", evt.ID, "order_id", orderID)
			break
		}
		if _, err := s.confirmPaid(ctx, orderID, evt.Verification.AmountCents); err != nil {
			return false, err
		}
	case payment.EventCheckoutExpired:
		if _, err := s.cancelUnpaid(ctx, orderID, "payment session expired"); err != nil {
			return false, err
		}
	default:
		s.logger.DebugContext(ctx, "payment event ignored", "event_id", evt.ID, "type", evt.Type)
	}
	return s.orders.RecordPaymentEvent(ctx, "stripe", evt.ID, evt.Type, evt.Payload)
}

func (s *Service) confirmPaid(ctx context.Context, orderID string, amountCents int64) (model.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return model.Order{}, model.ErrNotFound
	}
	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if current.Status == model.OrderPaid || current.Status == model.OrderFulfilled {
		return current, nil
	}
	if amountCents != 0 && amountCents != current.TotalCents {
		s.logger.ErrorContext(ctx, "payment amount mismatch",
			"order_id", orderID, "paid_cents", amountCents, "total_cents", current.TotalCents)
		return model.Order{}, ErrAmountMismatch
	}

	o, err := s.orders.Transition(ctx, orderID, model.OrderPaid, s.now().UTC(), func(o model.Order) (*outbox.Event, error) {
		evt, err := outbox.NewEvent("order", o.ID, events.OrderPaid, paidPayload(o))
		return &evt, err
	})
	if errors.Is(err, model.ErrInvalidOrderTransition) {
		// Lost a race with another confirmation.
		if again, gerr := s.orders.Get(ctx, orderID); gerr == nil && again.Status == model.OrderPaid {
			return again, nil
		}
	}
	if err != nil {
		return model.Order{}, err
	}
	s.metrics.Order(string(o.Status))
	s.logger.InfoContext(ctx, "order paid", "order_id", o.ID, "total_cents", o.TotalCents)
	return o, nil
}

func (s *Service) cancelUnpaid(ctx context.Context, orderID, reason string) (model.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return model.Order{}, model.ErrNotFound
	}
	current, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if current.Status != model.OrderPendingPayment {
		return current, nil
	}
	o, err := s.orders.Transition(ctx, orderID, model.OrderCancelled, s.now().UTC(), nil)
	if err != nil {
		return model.Order{}, err
	}
	s.metrics.Order(string(o.Status))
	s.logger.InfoContext(ctx, "order cancelled", "order_id", o.ID, "reason", reason)
	return o, nil
}

func (s *Service) Fulfil(ctx context.Context, id string) (model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Order{}, model.ErrNotFound
	}
	o, err := s.orders.Transition(ctx, id, model.OrderFulfilled, s.now().UTC(), nil)
	if err != nil {
		return model.Order{}, err
	}
	s.metrics.Order(string(o.Status))
	return o, nil
}

// ExpireUnpaid cancels orders left in pending_payment longer than ttl and
// returns how many were cancelled.
func (s *Service) ExpireUnpaid(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	ids, err := s.orders.UnpaidBefore(ctx, s.now().Add(-ttl), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		o, err := s.cancelUnpaid(ctx, id, "payment window elapsed")
		if err != nil {
			return n, err
		}
		if o.Status == model.OrderCancelled {
			n++
		}
	}
	return n, nil
}

func paidPayload(o model.Order) events.OrderPaidPayload {
	p := events.OrderPaidPayload{
		OrderID:       o.ID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Currency:      o.Currency,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
	}
	if o.PaidAt != nil {
		p.PaidAt = o.PaidAt.UTC().Format(time.RFC3339)
	}
	for _, it := range o.Items {
		p.Lines = append(p.Lines, events.OrderLine{Name: it.Name, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
	}
	return p
}
