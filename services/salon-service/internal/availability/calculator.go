// Package availability turns working-hours windows and active reservations
// into the list of bookable time slots for a date.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

// Slot is one collapsed point in time. StaffID and StaffName are empty when
// no staff member is free at Time.
type Slot struct {
	Time      model.TimeOfDay
	StaffID   string
	StaffName string
	Available bool
}

type WindowSource interface {
	// WindowsForWeekday returns the windows of active staff on weekday.
	WindowsForWeekday(ctx context.Context, weekday time.Weekday) ([]model.WorkingHoursWindow, error)
	// StaffForService returns the ids of active staff qualified for the
	// service. An empty result means no staff are mapped to it.
	StaffForService(ctx context.Context, serviceID string) ([]string, error)
}

type ReservationSource interface {
	// ActiveReservationsOn returns every non-cancelled reservation on date.
	ActiveReservationsOn(ctx context.Context, date time.Time) ([]model.ReservedSlot, error)
}

type Calculator struct {
	windows      WindowSource
	reservations ReservationSource
	policy       SlotPolicy
	now          func() time.Time
}

// NewCalculator normalizes policy; a nil now uses time.Now.
func NewCalculator(windows WindowSource, reservations ReservationSource, policy SlotPolicy, now func() time.Time) (*Calculator, error) {
	p, err := policy.Normalize()
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{windows: windows, reservations: reservations, policy: p, now: now}, nil
}

func (c *Calculator) Policy() SlotPolicy {
	return c.policy
}

type candidate struct {
	staffID   string
	staffName string
	free      bool
}

// ListTimeSlots returns one slot per distinct time, ascending. Each window
// yields the points start, start+step, ... whose full step ends by the
// window end. A time is available when at least one qualified staff member
// is free at it; the first free one in (name, id) order is attached.
func (c *Calculator) ListTimeSlots(ctx context.Context, date time.Time, serviceID string) ([]Slot, error) {
	windows, err := c.windows.WindowsForWeekday(ctx, date.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}
	if serviceID != "" {
		windows, err = c.filterByService(ctx, windows, serviceID)
		if err != nil {
			return nil, err
		}
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	reserved, err := c.reservedSet(ctx, date)
	if err != nil {
		return nil, err
	}

	now := c.now()
	step := c.policy.stepMinutes()
	byTime := make(map[model.TimeOfDay][]candidate)
	for _, w := range windows {
		for t := w.Start; t+step <= w.End; t += step {
			if c.policy.inBreak(t) {
				continue
			}
			_, taken := reserved[reservedKey{staffID: w.StaffID, time: t}]
			byTime[t] = append(byTime[t], candidate{
				staffID:   w.StaffID,
				staffName: w.StaffName,
				free:      !taken && c.policy.Bookable(date, t, now),
			})
		}
	}

	slots := make([]Slot, 0, len(byTime))
	for t, cands := range byTime {
		slots = append(slots, collapse(t, cands))
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots, nil
}

func collapse(t model.TimeOfDay, cands []candidate) Slot {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].staffName != cands[j].staffName {
			return cands[i].staffName < cands[j].staffName
		}
		return cands[i].staffID < cands[j].staffID
	})
	for _, cd := range cands {
		if cd.free {
			return Slot{Time: t, StaffID: cd.staffID, StaffName: cd.staffName, Available: true}
		}
	}
	return Slot{Time: t}
}

// IsSlotAvailable is the fast-path check run before inserting a reservation:
// t must be a point ListTimeSlots would generate for the staff member and no
// active reservation may hold it. The unique index stays authoritative.
func (c *Calculator) IsSlotAvailable(ctx context.Context, staffID string, date time.Time, t model.TimeOfDay) (bool, error) {
	if c.policy.inBreak(t) {
		return false, nil
	}
	windows, err := c.windows.WindowsForWeekday(ctx, date.Weekday())
	if err != nil {
		return false, fmt.Errorf("load working hours: %w", err)
	}
	step := c.policy.stepMinutes()
	inWindow := false
	for _, w := range windows {
		if w.StaffID == staffID && w.Offers(t, step) {
			inWindow = true
			break
		}
	}
	if !inWindow {
		return false, nil
	}

	reserved, err := c.reservedSet(ctx, date)
	if err != nil {
		return false, err
	}
	_, taken := reserved[reservedKey{staffID: staffID, time: t}]
	return !taken, nil
}

func (c *Calculator) filterByService(ctx context.Context, windows []model.WorkingHoursWindow, serviceID string) ([]model.WorkingHoursWindow, error) {
	qualified, err := c.windows.StaffForService(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("load staff for service: %w", err)
	}
	if len(qualified) == 0 {
		return windows, nil
	}
	allowed := make(map[string]struct{}, len(qualified))
	for _, id := range qualified {
		allowed[id] = struct{}{}
	}
	out := windows[:0:0]
	for _, w := range windows {
		if _, ok := allowed[w.StaffID]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

type reservedKey struct {
	staffID string
	time    model.TimeOfDay
}

func (c *Calculator) reservedSet(ctx context.Context, date time.Time) (map[reservedKey]struct{}, error) {
	rows, err := c.reservations.ActiveReservationsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	set := make(map[reservedKey]struct{}, len(rows))
	for _, r := range rows {
		set[reservedKey{staffID: r.StaffID, time: r.Time}] = struct{}{}
	}
	return set, nil
}
