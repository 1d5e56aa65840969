package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

func TestWriteReservations(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	rows := []model.Reservation{
		{ID: "r1", Date: day, Time: model.TimeOfDay(9 * 60), DurationMinutes: 30, ServiceName: "Cut", StaffName: "Bea", CustomerName: "Ada", CustomerEmail: "ada@example.com", Status: model.ReservationConfirmed},
		{ID: "r2", Date: day, Time: model.TimeOfDay(14 * 60), DurationMinutes: 60, ServiceName: "Colour", StaffName: "Cy", CustomerName: "Bo", CustomerEmail: "bo@example.com", Status: model.ReservationCancelled, CancelReason: "sick"},
		{ID: "r3", Date: day, Time: model.TimeOfDay(15*60 + 30), DurationMinutes: 30, ServiceName: "Cut", StaffName: "Bea", CustomerName: "Cat", CustomerEmail: "cat@example.com", Status: model.ReservationConfirmed},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReservations(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ReservationsSheet, SummarySheet}, f.GetSheetList())

	data, err := f.GetRows(ReservationsSheet)
	require.NoError(t, err)
	require.Len(t, data, 4)
	assert.Equal(t, "ID", data[0][0])
	assert.Equal(t, []string{"r2", "2026-05-04", "14:00", "60", "Colour", "Cy", "Bo", "bo@example.com", "", "cancelled", "sick"}, data[2][:11])

	styleID, err := f.GetCellStyle(ReservationsSheet, "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	summary, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Status", "Count"},
		{"pending", "0"},
		{"confirmed", "2"},
		{"completed", "0"},
		{"cancelled", "1"},
		{"total", "3"},
	}, summary)
}

func TestWriteReservationsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReservations(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	data, err := f.GetRows(ReservationsSheet)
	require.NoError(t, err)
	assert.Len(t, data, 1)
}
