package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type serviceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceCents      int64  `json:"price_cents"`
	Active          *bool  `json:"active"`
}

type serviceResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int64     `json:"price_cents"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toService(s model.Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
		Active:          s.Active,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type windowRequest struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func (req windowRequest) toModel(staffID string) (model.WorkingHoursWindow, error) {
	start, err := model.ParseTimeOfDay(strings.TrimSpace(req.Start))
	if err != nil {
		return model.WorkingHoursWindow{}, model.Invalid("start", "must be HH:MM")
	}
	end, err := model.ParseWindowBound(strings.TrimSpace(req.End))
	if err != nil {
		return model.WorkingHoursWindow{}, model.Invalid("end", "must be HH:MM")
	}
	w := model.WorkingHoursWindow{StaffID: staffID, Weekday: req.Weekday, Start: start, End: end}
	return w, w.Validate()
}

func windowsFrom(staffID string, reqs []windowRequest) ([]model.WorkingHoursWindow, error) {
	out := make([]model.WorkingHoursWindow, 0, len(reqs))
	for _, req := range reqs {
		w, err := req.toModel(staffID)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

type windowResponse struct {
	ID      string `json:"id"`
	StaffID string `json:"staff_id"`
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func toWindow(w model.WorkingHoursWindow) windowResponse {
	return windowResponse{ID: w.ID, StaffID: w.StaffID, Weekday: w.Weekday, Start: w.Start.String(), End: w.End.String()}
}

type staffRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	ServiceIDs []string `json:"service_ids"`
	Active     *bool    `json:"active"`
	// Schedule seeds the weekly working hours on create. Omitted means the
	// default Monday to Friday schedule; an empty list means none.
	Schedule []windowRequest `json:"schedule"`
}

type staffResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Active     bool      `json:"active"`
	ServiceIDs []string  `json:"service_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toStaff(s model.Staff) staffResponse {
	ids := s.ServiceIDs
	if ids == nil {
		ids = []string{}
	}
	return staffResponse{ID: s.ID, Name: s.Name, Email: s.Email, Active: s.Active, ServiceIDs: ids, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
	Active      *bool  `json:"active"`
}

type productResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProduct(p model.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func validServiceIDs(ids []string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return model.Invalid("service_ids", "must be uuids")
		}
	}
	return nil
}

func activeOr(v *bool) bool {
	return v == nil || *v
}

// Public

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	h.servicesJSON(w, r, false)
}

func (h *Handler) adminListServices(w http.ResponseWriter, r *http.Request) {
	h.servicesJSON(w, r, true)
}

func (h *Handler) servicesJSON(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	list, err := h.Catalog.ListServices(r.Context(), includeInactive)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]serviceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toService(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"services": out})
}

func (h *Handler) listStaff(w http.ResponseWriter, r *http.Request) {
	h.staffJSON(w, r, false)
}

func (h *Handler) adminListStaff(w http.ResponseWriter, r *http.Request) {
	h.staffJSON(w, r, true)
}

func (h *Handler) staffJSON(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	list, err := h.Catalog.ListStaff(r.Context(), includeInactive)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]staffResponse, 0, len(list))
	for _, s := range list {
		if !includeInactive {
			// Contact details stay internal.
			s.Email = ""
		}
		out = append(out, toStaff(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"staff": out})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	h.productsJSON(w, r, false)
}

func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	h.productsJSON(w, r, true)
}

func (h *Handler) productsJSON(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	list, err := h.Catalog.ListProducts(r.Context(), includeInactive)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProduct(p))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err == nil && !p.Active {
		err = model.ErrNotFound
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProduct(p))
}

// Admin: services

func (req serviceRequest) toModel(id string) model.Service {
	return model.Service{
		ID:              id,
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		DurationMinutes: req.DurationMinutes,
		PriceCents:      req.PriceCents,
		Active:          activeOr(req.Active),
	}
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if !decode(w, r, &req) {
		return
	}
	s := req.toModel("")
	if err := h.Catalog.CreateService(r.Context(), &s); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toService(s))
}

func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req serviceRequest
	if !decode(w, r, &req) {
		return
	}
	s := req.toModel(id)
	if err := h.Catalog.UpdateService(r.Context(), &s); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toService(s))
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	h.deactivate(w, r, h.Catalog.DeactivateService)
}

// Admin: staff

func (h *Handler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validServiceIDs(req.ServiceIDs); err != nil {
		h.writeErr(w, r, err)
		return
	}
	var schedule []model.WorkingHoursWindow
	if req.Schedule != nil {
		var err error
		if schedule, err = windowsFrom("", req.Schedule); err != nil {
			h.writeErr(w, r, err)
			return
		}
	}
	s := model.Staff{Name: strings.TrimSpace(req.Name), Email: strings.TrimSpace(req.Email), ServiceIDs: req.ServiceIDs, Active: true}
	if err := h.Catalog.CreateStaff(r.Context(), &s, schedule); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toStaff(s))
}

func (h *Handler) updateStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req staffRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Schedule != nil {
		h.writeErr(w, r, model.Invalid("schedule", "use the working-hours endpoints"))
		return
	}
	if err := validServiceIDs(req.ServiceIDs); err != nil {
		h.writeErr(w, r, err)
		return
	}
	s := model.Staff{ID: id, Name: strings.TrimSpace(req.Name), Email: strings.TrimSpace(req.Email), ServiceIDs: req.ServiceIDs, Active: activeOr(req.Active)}
	if err := h.Catalog.UpdateStaff(r.Context(), &s); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStaff(s))
}

func (h *Handler) deleteStaff(w http.ResponseWriter, r *http.Request) {
	h.deactivate(w, r, h.Catalog.DeactivateStaff)
}

func (h *Handler) listWorkingHours(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.Catalog.ListWorkingHours(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]windowResponse, 0, len(list))
	for _, win := range list {
		out = append(out, toWindow(win))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"working_hours": out})
}

func (h *Handler) addWorkingHours(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req windowRequest
	if !decode(w, r, &req) {
		return
	}
	win, err := req.toModel(id)
	if err == nil {
		err = h.Catalog.AddWorkingHours(r.Context(), &win)
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toWindow(win))
}

func (h *Handler) replaceWorkingHours(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Windows []windowRequest `json:"windows"`
	}
	if !decode(w, r, &req) {
		return
	}
	windows, err := windowsFrom(id, req.Windows)
	if err == nil {
		err = h.Catalog.ReplaceWorkingHours(r.Context(), id, windows)
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.listWorkingHours(w, r)
}

func (h *Handler) deleteWorkingHours(w http.ResponseWriter, r *http.Request) {
	staffID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	windowID, ok := pathID(w, r, "windowID")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteWorkingHours(r.Context(), staffID, windowID); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin: products

func (req productRequest) toModel(id string) model.Product {
	return model.Product{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Active:      activeOr(req.Active),
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p := req.toModel("")
	if err := h.Catalog.CreateProduct(r.Context(), &p); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toProduct(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	p := req.toModel(id)
	if err := h.Catalog.UpdateProduct(r.Context(), &p); err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProduct(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	h.deactivate(w, r, h.Catalog.DeactivateProduct)
}

// deactivate soft-deletes through fn.
func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) error) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
