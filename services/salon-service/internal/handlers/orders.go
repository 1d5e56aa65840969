package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/checkout"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/payment"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

const maxWebhookBytes = 64 << 10

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	ShippingAddress string             `json:"shipping_address"`
	Items           []orderItemRequest `json:"items"`
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Status          string              `json:"status"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	ShippingAddress string              `json:"shipping_address,omitempty"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	ShippingCents   int64               `json:"shipping_cents"`
	TaxCents        int64               `json:"tax_cents"`
	TotalCents      int64               `json:"total_cents"`
	PaymentURL      string              `json:"payment_url,omitempty"`
	PaymentRef      string              `json:"payment_reference,omitempty"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []orderItemResponse `json:"items,omitempty"`
}

func toOrder(o model.Order) orderResponse {
	out := orderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		ShippingAddress: o.ShippingAddress,
		Currency:        o.Currency,
		SubtotalCents:   o.SubtotalCents,
		ShippingCents:   o.ShippingCents,
		TaxCents:        o.TaxCents,
		TotalCents:      o.TotalCents,
		PaymentURL:      o.PaymentURL,
		PaymentRef:      o.PaymentReference,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResponse{ProductID: it.ProductID, Name: it.Name, UnitPriceCents: it.UnitPriceCents, Quantity: it.Quantity})
	}
	return out
}

func toOrders(list []model.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrder(o))
	}
	return out
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decode(w, r, &req) {
		return
	}
	in := checkout.PlaceOrderInput{
		UserID:          orderActor(r.Context()).UserID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, checkout.ItemInput{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity})
	}
	o, err := h.Orders.PlaceOrder(r.Context(), in)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+o.ID)
	httpx.WriteJSON(w, http.StatusCreated, toOrder(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Orders.Get(r.Context(), id, orderActor(r.Context()))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Orders.InitializePayment(r.Context(), id, orderActor(r.Context()))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"order_id":          o.ID,
		"payment_url":       o.PaymentURL,
		"payment_reference": o.PaymentReference,
	})
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.VerifyPayment(r.Context(), r.URL.Query().Get("reference"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_id": o.ID,
		"status":   string(o.Status),
		"paid":     o.Status == model.OrderPaid || o.Status == model.OrderFulfilled,
	})
}

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Webhook.Secret == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	evt, err := payment.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), h.Webhook.Secret, h.Webhook.Tolerance)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "stripe webhook rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid webhook")
		return
	}

	fresh, err := h.Orders.HandleWebhook(r.Context(), evt)
	if errors.Is(err, model.ErrNotFound) {
		// Sessions created outside this shop; retrying will not help.
		h.Logger.WarnContext(r.Context(), "stripe webhook for unknown order", "event_id", evt.ID, "type", evt.Type)
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.Logger.InfoContext(r.Context(), "stripe webhook handled", "event_id", evt.ID, "type", evt.Type, "duplicate", !fresh)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true, "duplicate": !fresh})
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	c, _ := claimsFrom(r.Context())
	list, err := h.Orders.List(r.Context(), storage.OrderFilter{UserID: c.Subject, Limit: queryLimit(r, 50, 200)})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": toOrders(list)})
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := storage.OrderFilter{Limit: queryLimit(r, 100, 500)}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := model.ParseOrderStatus(raw)
		if !ok {
			h.writeErr(w, r, model.Invalid("status", "unknown status"))
			return
		}
		f.Status = st
	}
	list, err := h.Orders.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": toOrders(list)})
}

func (h *Handler) fulfilOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Orders.Fulfil(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrder(o))
}
