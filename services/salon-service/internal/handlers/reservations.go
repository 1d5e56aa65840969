package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/storage"
)

type createReservationRequest struct {
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type reservationResponse struct {
	ID              string     `json:"id"`
	ServiceID       string     `json:"service_id"`
	ServiceName     string     `json:"service_name"`
	StaffID         string     `json:"staff_id"`
	StaffName       string     `json:"staff_name"`
	CustomerName    string     `json:"customer_name"`
	CustomerEmail   string     `json:"customer_email"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	CancelReason    string     `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func toReservation(res model.Reservation) reservationResponse {
	return reservationResponse{
		ID:              res.ID,
		ServiceID:       res.ServiceID,
		ServiceName:     res.ServiceName,
		StaffID:         res.StaffID,
		StaffName:       res.StaffName,
		CustomerName:    res.CustomerName,
		CustomerEmail:   res.CustomerEmail,
		CustomerPhone:   res.CustomerPhone,
		Notes:           res.Notes,
		Date:            model.FormatDate(res.Date),
		Time:            res.Time.String(),
		DurationMinutes: res.DurationMinutes,
		Status:          string(res.Status),
		CancelReason:    res.CancelReason,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
		ConfirmedAt:     res.ConfirmedAt,
		CompletedAt:     res.CompletedAt,
		CancelledAt:     res.CancelledAt,
	}
}

func toReservations(list []model.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toReservation(res))
	}
	return out
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if !decode(w, r, &req) {
		return
	}
	actor := bookingActor(r.Context())
	result, err := h.Bookings.Create(r.Context(), booking.CreateInput{
		ServiceID:      req.ServiceID,
		StaffID:        req.StaffID,
		Date:           req.Date,
		Time:           req.Time,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Notes:          req.Notes,
		UserID:         actor.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	w.Header().Set("Location", "/api/v1/reservations/"+result.Reservation.ID)
	httpx.WriteJSON(w, status, toReservation(result.Reservation))
}

func (h *Handler) getReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Bookings.Get(r.Context(), id, bookingActor(r.Context()))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toReservation(res))
}

// cancelReservation serves both the customer and the admin route; the
// booking service decides what the caller may do.
func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	res, err := h.Bookings.Cancel(r.Context(), id, bookingActor(r.Context()), req.Reason)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toReservation(res))
}

func (h *Handler) confirmReservation(w http.ResponseWriter, r *http.Request) {
	h.transitionReservation(w, r, h.Bookings.Confirm)
}

func (h *Handler) completeReservation(w http.ResponseWriter, r *http.Request) {
	h.transitionReservation(w, r, h.Bookings.Complete)
}

func (h *Handler) transitionReservation(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, booking.Actor) (model.Reservation, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := apply(r.Context(), id, bookingActor(r.Context()))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toReservation(res))
}

func (h *Handler) myReservations(w http.ResponseWriter, r *http.Request) {
	c, _ := claimsFrom(r.Context())
	list, err := h.Bookings.ListForUser(r.Context(), c.Subject)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reservations": toReservations(list)})
}

// reservationFilter reads from, to, status and staff_id. Dates are inclusive.
func reservationFilter(r *http.Request) (storage.ReservationFilter, error) {
	q := r.URL.Query()
	f := storage.ReservationFilter{StaffID: strings.TrimSpace(q.Get("staff_id")), Limit: queryLimit(r, 200, 1000)}
	if f.StaffID != "" {
		if _, err := uuid.Parse(f.StaffID); err != nil {
			return f, model.Invalid("staff_id", "must be a uuid")
		}
	}
	if raw := q.Get("from"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return f, model.Invalid("from", "must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := model.ParseDate(raw)
		if err != nil {
			return f, model.Invalid("to", "must be YYYY-MM-DD")
		}
		f.To = &d
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, model.Invalid("to", "must not be before from")
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseReservationStatus(raw)
		if !ok {
			return f, model.Invalid("status", "unknown status")
		}
		f.Status = st
	}
	return f, nil
}

func (h *Handler) adminListReservations(w http.ResponseWriter, r *http.Request) {
	f, err := reservationFilter(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	list, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"reservations": toReservations(list)})
}
