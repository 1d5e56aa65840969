// Package handlers is the JSON HTTP surface of salon-service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/checkout"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

type Slots interface {
	ListTimeSlots(ctx context.Context, date time.Time, serviceID string) ([]availability.Slot, error)
	IsSlotAvailable(ctx context.Context, staffID string, date time.Time, t model.TimeOfDay) (bool, error)
	Policy() availability.SlotPolicy
}

type Bookings interface {
	Create(ctx context.Context, in booking.CreateInput) (booking.CreateResult, error)
	Get(ctx context.Context, id string, actor booking.Actor) (model.Reservation, error)
	List(ctx context.Context, f storage.ReservationFilter) ([]model.Reservation, error)
	ListForUser(ctx context.Context, userID string) ([]model.Reservation, error)
	Confirm(ctx context.Context, id string, actor booking.Actor) (model.Reservation, error)
	Complete(ctx context.Context, id string, actor booking.Actor) (model.Reservation, error)
	Cancel(ctx context.Context, id string, actor booking.Actor, reason string) (model.Reservation, error)
}

type Orders interface {
	PlaceOrder(ctx context.Context, in checkout.PlaceOrderInput) (model.Order, error)
	Get(ctx context.Context, id string, actor checkout.Actor) (model.Order, error)
	List(ctx context.Context, f storage.OrderFilter) ([]model.Order, error)
	InitializePayment(ctx context.Context, id string, actor checkout.Actor) (model.Order, error)
	VerifyPayment(ctx context.Context, reference string) (model.Order, error)
	HandleWebhook(ctx context.Context, evt payment.WebhookEvent) (bool, error)
	Fulfil(ctx context.Context, id string) (model.Order, error)
	Pricing() checkout.PricingConfig
}

type Catalog interface {
	ListServices(ctx context.Context, includeInactive bool) ([]model.Service, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	CreateService(ctx context.Context, s *model.Service) error
	UpdateService(ctx context.Context, s *model.Service) error
	DeactivateService(ctx context.Context, id string) error

	ListStaff(ctx context.Context, includeInactive bool) ([]model.Staff, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	CreateStaff(ctx context.Context, s *model.Staff, schedule []model.WorkingHoursWindow) error
	UpdateStaff(ctx context.Context, s *model.Staff) error
	DeactivateStaff(ctx context.Context, id string) error

	ListWorkingHours(ctx context.Context, staffID string) ([]model.WorkingHoursWindow, error)
	AddWorkingHours(ctx context.Context, w *model.WorkingHoursWindow) error
	ReplaceWorkingHours(ctx context.Context, staffID string, windows []model.WorkingHoursWindow) error
	DeleteWorkingHours(ctx context.Context, staffID, id string) error

	ListProducts(ctx context.Context, includeInactive bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeactivateProduct(ctx context.Context, id string) error
}

type Users interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// WebhookConfig verifies Stripe deliveries. An empty Secret disables the
// webhook endpoint.
type WebhookConfig struct {
	Secret    string
	Tolerance time.Duration
}

type Deps struct {
	Slots    Slots
	Bookings Bookings
	Orders   Orders
	Catalog  Catalog
	Users    Users
	Tokens   *auth.Signer
	Webhook  WebhookConfig
	Logger   *slog.Logger
	Metrics  *metrics.Salon
	// Limit guards public mutating routes. Nil means unlimited.
	Limit httpx.Middleware
	Now   func() time.Time
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Limit == nil {
		d.Limit = func(next http.Handler) http.Handler { return next }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{Deps: d}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	limited := func(fn http.HandlerFunc) http.Handler { return h.Limit(h.authenticate(fn)) }
	open := func(fn http.HandlerFunc) http.Handler { return h.authenticate(fn) }
	user := func(fn http.HandlerFunc) http.Handler { return h.authenticate(h.requireAuth(fn)) }
	admin := func(fn http.HandlerFunc) http.Handler {
		return h.authenticate(h.requireAuth(h.requireRole(auth.RoleAdmin, fn)))
	}

	mux.Handle("GET /api/v1/slots", open(h.listSlots))
	mux.Handle("GET /api/v1/slots/check", open(h.checkSlot))

	mux.Handle("GET /api/v1/services", open(h.listServices))
	mux.Handle("GET /api/v1/staff", open(h.listStaff))
	mux.Handle("GET /api/v1/products", open(h.listProducts))
	mux.Handle("GET /api/v1/products/{id}", open(h.getProduct))

	mux.Handle("POST /api/v1/reservations", limited(h.createReservation))
	mux.Handle("GET /api/v1/reservations/{id}", user(h.getReservation))
	mux.Handle("POST /api/v1/reservations/{id}/cancel", user(h.cancelReservation))

	mux.Handle("POST /api/v1/orders", limited(h.placeOrder))
	mux.Handle("GET /api/v1/orders/{id}", open(h.getOrder))
	mux.Handle("POST /api/v1/orders/{id}/pay", limited(h.payOrder))
	mux.Handle("GET /api/v1/payments/verify", open(h.verifyPayment))
	mux.Handle("POST /api/v1/payments/webhooks/stripe", http.HandlerFunc(h.stripeWebhook))

	mux.Handle("POST /api/v1/auth/register", limited(h.register))
	mux.Handle("POST /api/v1/auth/login", limited(h.login))
	mux.Handle("GET /api/v1/auth/me", user(h.me))
	mux.Handle("GET /api/v1/me/reservations", user(h.myReservations))
	mux.Handle("GET /api/v1/me/orders", user(h.myOrders))

	mux.Handle("GET /api/v1/admin/services", admin(h.adminListServices))
	mux.Handle("POST /api/v1/admin/services", admin(h.createService))
	mux.Handle("PUT /api/v1/admin/services/{id}", admin(h.updateService))
	mux.Handle("DELETE /api/v1/admin/services/{id}", admin(h.deleteService))

	mux.Handle("GET /api/v1/admin/staff", admin(h.adminListStaff))
	mux.Handle("POST /api/v1/admin/staff", admin(h.createStaff))
	mux.Handle("PUT /api/v1/admin/staff/{id}", admin(h.updateStaff))
	mux.Handle("DELETE /api/v1/admin/staff/{id}", admin(h.deleteStaff))
	mux.Handle("GET /api/v1/admin/staff/{id}/working-hours", admin(h.listWorkingHours))
	mux.Handle("POST /api/v1/admin/staff/{id}/working-hours", admin(h.addWorkingHours))
	mux.Handle("PUT /api/v1/admin/staff/{id}/working-hours", admin(h.replaceWorkingHours))
	mux.Handle("DELETE /api/v1/admin/staff/{id}/working-hours/{windowID}", admin(h.deleteWorkingHours))

	mux.Handle("GET /api/v1/admin/products", admin(h.adminListProducts))
	mux.Handle("POST /api/v1/admin/products", admin(h.createProduct))
	mux.Handle("PUT /api/v1/admin/products/{id}", admin(h.updateProduct))
	mux.Handle("DELETE /api/v1/admin/products/{id}", admin(h.deleteProduct))

	mux.Handle("GET /api/v1/admin/reservations", admin(h.adminListReservations))
	mux.Handle("POST /api/v1/admin/reservations/{id}/confirm", admin(h.confirmReservation))
	mux.Handle("POST /api/v1/admin/reservations/{id}/complete", admin(h.completeReservation))
	mux.Handle("POST /api/v1/admin/reservations/{id}/cancel", admin(h.cancelReservation))

	mux.Handle("GET /api/v1/admin/orders", admin(h.adminListOrders))
	mux.Handle("POST /api/v1/admin/orders/{id}/fulfil", admin(h.fulfilOrder))

	mux.Handle("GET /api/v1/admin/reports/reservations.xlsx", admin(h.reservationsReport))
}

// writeErr maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a 500 without detail.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.WriteFieldError(w, http.StatusBadRequest, ve.Field, ve.Error())
	case errors.Is(err, model.ErrSlotConflict), errors.Is(err, model.ErrPersistenceConflict):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrAlreadyStarted),
		errors.Is(err, model.ErrNotStarted),
		errors.Is(err, model.ErrInvalidOrderTransition),
		errors.Is(err, model.ErrOutOfStock),
		errors.Is(err, model.ErrEmailTaken),
		errors.Is(err, model.ErrIdempotencyMismatch):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrUnauthorized):
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, model.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, payment.ErrNotConfigured):
		httpx.WriteError(w, http.StatusServiceUnavailable, "payments are not configured")
	case errors.Is(err, checkout.ErrAmountMismatch):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, http.StatusServiceUnavailable, "request timed out")
	default:
		h.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// pathID returns the {name} path value when it is a uuid. Anything else is
// answered with 404 before touching the database.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if _, err := uuid.Parse(id); err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not found")
		return "", false
	}
	return id, true
}

func queryLimit(r *http.Request, fallback, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
