// Package report renders reservation exports as XLSX workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

const (
	ReservationsSheet = "Reservations"
	SummarySheet      = "Summary"
	ContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reservationColumns = []any{
	"ID", "Date", "Time", "Duration (min)", "Service", "Staff",
	"Customer", "Email", "Phone", "Status", "Cancel reason", "Created at",
}

// statusOrder fixes the Summary row order.
var statusOrder = []model.ReservationStatus{
	model.ReservationPending,
	model.ReservationConfirmed,
	model.ReservationCompleted,
	model.ReservationCancelled,
}

// WriteReservations writes a workbook with one row per reservation and a
// per-status summary to w.
func WriteReservations(w io.Writer, rows []model.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReservationsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", SummarySheet, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeHeader(f, ReservationsSheet, reservationColumns, bold); err != nil {
		return err
	}
	counts := map[model.ReservationStatus]int{}
	for i, r := range rows {
		counts[r.Status]++
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ReservationsSheet, cell, &[]any{
			r.ID,
			model.FormatDate(r.Date),
			r.Time.String(),
			r.DurationMinutes,
			r.ServiceName,
			r.StaffName,
			r.CustomerName,
			r.CustomerEmail,
			r.CustomerPhone,
			string(r.Status),
			r.CancelReason,
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(ReservationsSheet, "A", "A", 38)
	_ = f.SetColWidth(ReservationsSheet, "E", "H", 22)

	if err := writeHeader(f, SummarySheet, []any{"Status", "Count"}, bold); err != nil {
		return err
	}
	for i, st := range statusOrder {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SummarySheet, cell, &[]any{string(st), counts[st]}); err != nil {
			return err
		}
	}
	totalCell, _ := excelize.CoordinatesToCellName(1, len(statusOrder)+2)
	if err := f.SetSheetRow(SummarySheet, totalCell, &[]any{"total", len(rows)}); err != nil {
		return err
	}

	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, columns []any, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", end, style)
}
