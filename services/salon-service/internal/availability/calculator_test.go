package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

type fakeWindows struct {
	windows   []model.WorkingHoursWindow
	byService map[string][]string
	err       error
}

func (f *fakeWindows) WindowsForWeekday(_ context.Context, weekday time.Weekday) ([]model.WorkingHoursWindow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.WorkingHoursWindow
	for _, w := range f.windows {
		if w.Weekday == int(weekday) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWindows) StaffForService(_ context.Context, serviceID string) ([]string, error) {
	return f.byService[serviceID], nil
}

type fakeReservations struct {
	byDate map[string][]model.ReservedSlot
}

func (f *fakeReservations) ActiveReservationsOn(_ context.Context, date time.Time) ([]model.ReservedSlot, error) {
	return f.byDate[model.FormatDate(date)], nil
}

func hm(t *testing.T, s string) model.TimeOfDay {
	t.Helper()
	v, err := model.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func window(t *testing.T, staffID, name string, weekday time.Weekday, start, end string) model.WorkingHoursWindow {
	t.Helper()
	w := model.WorkingHoursWindow{StaffID: staffID, StaffName: name, Weekday: int(weekday), Start: hm(t, start)}
	if end == "24:00" {
		w.End = model.MinutesPerDay
	} else {
		w.End = hm(t, end)
	}
	return w
}

// 2026-05-04 is a Monday; the clock sits a week earlier so lead time never
// interferes unless a test moves it.
var (
	monday    = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	weekEarly = func() time.Time { return monday.AddDate(0, 0, -7) }
)

func newCalc(t *testing.T, w *fakeWindows, r *fakeReservations, now func() time.Time) *Calculator {
	t.Helper()
	if r == nil {
		r = &fakeReservations{}
	}
	if now == nil {
		now = weekEarly
	}
	c, err := NewCalculator(w, r, DefaultSlotPolicy(), now)
	require.NoError(t, err)
	return c
}

func times(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Time.String()
	}
	return out
}

func TestListTimeSlotsFullDay(t *testing.T) {
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "09:00", "17:00"),
	}}, nil, nil)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0].Time.String())
	assert.Equal(t, "16:30", slots[15].Time.String())
	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Equal(t, "s1", s.StaffID)
		assert.Equal(t, "Ana", s.StaffName)
	}
}

func TestListTimeSlotsWindowEdges(t *testing.T) {
	tests := []struct {
		name, start, end string
		want             []string
	}{
		{"exactly one step", "09:00", "09:30", []string{"09:00"}},
		{"shorter than a step", "09:00", "09:29", []string{}},
		{"partial trailing step", "09:00", "10:15", []string{"09:00", "09:30"}},
		{"until midnight", "23:00", "24:00", []string{"23:00", "23:30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
				window(t, "s1", "Ana", time.Monday, tt.start, tt.end),
			}}, nil, nil)
			slots, err := c.ListTimeSlots(context.Background(), monday, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, times(slots))
		})
	}
}

func TestListTimeSlotsZeroWindowsIsEmpty(t *testing.T) {
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Tuesday, "09:00", "17:00"),
	}}, nil, nil)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestReservedTimeUnavailableWithSingleStaff(t *testing.T) {
	res := &fakeReservations{byDate: map[string][]model.ReservedSlot{
		"2026-05-04": {{StaffID: "s1", Time: hm(t, "14:00")}},
	}}
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "09:00", "17:00"),
	}}, res, nil)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	for _, s := range slots {
		if s.Time.String() == "14:00" {
			assert.False(t, s.Available)
			assert.Empty(t, s.StaffID)
			continue
		}
		assert.True(t, s.Available, s.Time.String())
	}
}

func TestReservedTimeStillAvailableWithAnotherStaff(t *testing.T) {
	res := &fakeReservations{byDate: map[string][]model.ReservedSlot{
		"2026-05-04": {{StaffID: "s1", Time: hm(t, "14:00")}},
	}}
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "09:00", "17:00"),
		window(t, "s2", "Bea", time.Monday, "13:00", "15:00"),
	}}, res, nil)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	got := map[string]Slot{}
	for _, s := range slots {
		got[s.Time.String()] = s
	}
	assert.True(t, got["14:00"].Available)
	assert.Equal(t, "s2", got["14:00"].StaffID)
	// Ana sorts first and is free at 13:00.
	assert.Equal(t, "s1", got["13:00"].StaffID)
}

func TestSlotsSortedUniqueAndIdempotent(t *testing.T) {
	w := &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s2", "Bea", time.Monday, "12:00", "18:00"),
		window(t, "s1", "Ana", time.Monday, "09:00", "12:00"),
		window(t, "s1", "Ana", time.Monday, "13:00", "17:00"),
		window(t, "s3", "Cy", time.Monday, "08:15", "10:00"),
	}}
	res := &fakeReservations{byDate: map[string][]model.ReservedSlot{
		"2026-05-04": {{StaffID: "s1", Time: hm(t, "13:00")}, {StaffID: "s2", Time: hm(t, "13:00")}},
	}}
	c := newCalc(t, w, res, nil)

	first, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	second, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seen := map[model.TimeOfDay]bool{}
	for i, s := range first {
		assert.False(t, seen[s.Time], "duplicate %s", s.Time)
		seen[s.Time] = true
		if i > 0 {
			assert.Less(t, first[i-1].Time, s.Time)
		}
		if s.Available {
			assert.NotEmpty(t, s.StaffID)
		}
	}
	assert.Equal(t, "08:15", first[0].Time.String())
}

func TestListTimeSlotsFiltersByService(t *testing.T) {
	w := &fakeWindows{
		windows: []model.WorkingHoursWindow{
			window(t, "s1", "Ana", time.Monday, "09:00", "10:00"),
			window(t, "s2", "Bea", time.Monday, "11:00", "12:00"),
		},
		byService: map[string][]string{"color": {"s2"}},
	}
	c := newCalc(t, w, nil, nil)

	slots, err := c.ListTimeSlots(context.Background(), monday, "color")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00", "11:30"}, times(slots))

	// Unmapped services fall back to every active staff member.
	slots, err = c.ListTimeSlots(context.Background(), monday, "cut")
	require.NoError(t, err)
	assert.Len(t, slots, 4)
}

func TestLeadTimeMarksEarlyPointsUnavailable(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 5, 4, 10, 10, 0, 0, time.UTC) }
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "09:00", "13:00"),
	}}, nil, now)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	for _, s := range slots {
		want := s.Time >= hm(t, "11:30")
		assert.Equal(t, want, s.Available, s.Time.String())
	}
}

func TestBreakSkipsPoints(t *testing.T) {
	bs, be := hm(t, "12:00"), hm(t, "13:00")
	p := DefaultSlotPolicy()
	p.BreakStart, p.BreakEnd = &bs, &be
	c, err := NewCalculator(&fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "11:00", "14:00"),
	}}, &fakeReservations{}, p, weekEarly)
	require.NoError(t, err)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00", "11:30", "13:00", "13:30"}, times(slots))

	ok, err := c.IsSlotAvailable(context.Background(), "s1", monday, hm(t, "12:30"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBreakOffGridBlocksOverlappingSteps(t *testing.T) {
	bs, be := hm(t, "12:15"), hm(t, "12:45")
	p := DefaultSlotPolicy()
	p.BreakStart, p.BreakEnd = &bs, &be
	c, err := NewCalculator(&fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "11:00", "14:00"),
	}}, &fakeReservations{}, p, weekEarly)
	require.NoError(t, err)

	slots, err := c.ListTimeSlots(context.Background(), monday, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00", "11:30", "13:00", "13:30"}, times(slots))

	for _, at := range []string{"12:00", "12:30"} {
		ok, err := c.IsSlotAvailable(context.Background(), "s1", monday, hm(t, at))
		require.NoError(t, err)
		assert.False(t, ok, at)
	}
	ok, err := c.IsSlotAvailable(context.Background(), "s1", monday, hm(t, "11:30"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSlotAvailable(t *testing.T) {
	res := &fakeReservations{byDate: map[string][]model.ReservedSlot{
		"2026-05-04": {{StaffID: "s1", Time: hm(t, "14:00")}},
	}}
	c := newCalc(t, &fakeWindows{windows: []model.WorkingHoursWindow{
		window(t, "s1", "Ana", time.Monday, "09:00", "17:00"),
		window(t, "s2", "Bea", time.Monday, "09:00", "17:00"),
	}}, res, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		staffID string
		date    time.Time
		at      string
		want    bool
	}{
		{"free point", "s1", monday, "09:00", true},
		{"last point", "s1", monday, "16:30", true},
		{"end is exclusive", "s1", monday, "17:00", false},
		{"before window", "s1", monday, "08:30", false},
		{"off grid", "s1", monday, "09:15", false},
		{"step runs past window end", "s1", monday, "16:45", false},
		{"reserved", "s1", monday, "14:00", false},
		{"other staff free", "s2", monday, "14:00", true},
		{"unknown staff", "s9", monday, "10:00", false},
		{"other weekday", "s1", monday.AddDate(0, 0, 1), "10:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.IsSlotAvailable(ctx, tt.staffID, tt.date, hm(t, tt.at))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	c := newCalc(t, &fakeWindows{err: boom}, nil, nil)

	_, err := c.ListTimeSlots(context.Background(), monday, "")
	assert.ErrorIs(t, err, boom)
	_, err = c.IsSlotAvailable(context.Background(), "s1", monday, 600)
	assert.ErrorIs(t, err, boom)
}

func TestValidateDate(t *testing.T) {
	p, err := DefaultSlotPolicy().Normalize()
	require.NoError(t, err)
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, p.ValidateDate(monday, now))
	assert.NoError(t, p.ValidateDate(monday.AddDate(0, 0, 90), now))
	assert.ErrorIs(t, p.ValidateDate(monday.AddDate(0, 0, 91), now), ErrDateTooFar)
	assert.ErrorIs(t, p.ValidateDate(monday.AddDate(0, 0, -1), now), ErrDateInPast)
}

func TestNormalizeRejectsBadPolicy(t *testing.T) {
	_, err := SlotPolicy{Step: 90 * time.Second}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidStep)

	bs := model.TimeOfDay(600)
	_, err = SlotPolicy{BreakStart: &bs}.Normalize()
	assert.Error(t, err)
}
