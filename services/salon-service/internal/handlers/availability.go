package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type slotResponse struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	StaffID   string `json:"staff_id,omitempty"`
	StaffName string `json:"staff_name,omitempty"`
}

type slotsResponse struct {
	Date        string         `json:"date"`
	ServiceID   string         `json:"service_id,omitempty"`
	Timezone    string         `json:"timezone"`
	StepMinutes int            `json:"step_minutes"`
	Slots       []slotResponse `json:"slots"`
}

type checkResponse struct {
	StaffID   string `json:"staff_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// queryDate parses ?date= and applies the booking horizon.
func (h *Handler) queryDate(r *http.Request) (time.Time, error) {
	date, err := model.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		return time.Time{}, model.Invalid("date", "must be YYYY-MM-DD")
	}
	policy := h.Slots.Policy()
	if err := policy.ValidateDate(date, h.Now()); err != nil {
		if errors.Is(err, availability.ErrDateInPast) {
			return time.Time{}, model.Invalid("date", "must not be in the past")
		}
		return time.Time{}, model.Invalid("date", fmt.Sprintf("must be within %d days", policy.MaxAdvanceDays))
	}
	return date, nil
}

func (h *Handler) listSlots(w http.ResponseWriter, r *http.Request) {
	h.Metrics.SlotQuery("list")
	date, err := h.queryDate(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID != "" {
		if _, err := uuid.Parse(serviceID); err != nil {
			h.writeErr(w, r, model.Invalid("service_id", "must be a uuid"))
			return
		}
	}

	slots, err := h.Slots.ListTimeSlots(r.Context(), date, serviceID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	policy := h.Slots.Policy()
	out := slotsResponse{
		Date:        model.FormatDate(date),
		ServiceID:   serviceID,
		Timezone:    policy.Location.String(),
		StepMinutes: int(policy.Step / time.Minute),
		Slots:       make([]slotResponse, 0, len(slots)),
	}
	for _, s := range slots {
		out.Slots = append(out.Slots, slotResponse{Time: s.Time.String(), Available: s.Available, StaffID: s.StaffID, StaffName: s.StaffName})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) checkSlot(w http.ResponseWriter, r *http.Request) {
	h.Metrics.SlotQuery("check")
	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	if _, err := uuid.Parse(staffID); err != nil {
		h.writeErr(w, r, model.Invalid("staff_id", "must be a uuid"))
		return
	}
	date, err := model.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		h.writeErr(w, r, model.Invalid("date", "must be YYYY-MM-DD"))
		return
	}
	t, err := model.ParseTimeOfDay(strings.TrimSpace(q.Get("time")))
	if err != nil {
		h.writeErr(w, r, model.Invalid("time", "must be HH:MM"))
		return
	}

	ok, err := h.Slots.IsSlotAvailable(r.Context(), staffID, date, t)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, checkResponse{StaffID: staffID, Date: model.FormatDate(date), Time: t.String(), Available: ok})
}
