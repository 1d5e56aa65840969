package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/report"
)

const maxReportRows = 10000

// reservationsReport renders the filtered reservations as XLSX. The workbook
// is built in memory so a failure can still be reported as JSON.
func (h *Handler) reservationsReport(w http.ResponseWriter, r *http.Request) {
	f, err := reservationFilter(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	f.Limit = maxReportRows
	list, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteReservations(&buf, list); err != nil {
		h.writeErr(w, r, fmt.Errorf("render report: %w", err))
		return
	}
	name := "reservations"
	if v := r.URL.Query().Get("from"); v != "" {
		name += "-" + v
	}
	if v := r.URL.Query().Get("to"); v != "" {
		name += "-" + v
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
