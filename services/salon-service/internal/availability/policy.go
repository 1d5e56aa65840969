package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/salon-service/internal/model"
)

const (
	DefaultStep           = 30 * time.Minute
	DefaultMinLeadTime    = time.Hour
	DefaultMaxAdvanceDays = 90
)

var (
	ErrDateInPast  = errors.New("date is in the past")
	ErrDateTooFar  = errors.New("date is beyond the booking horizon")
	ErrInvalidStep = errors.New("slot step must be a positive whole number of minutes")
)

// SlotPolicy controls how windows are cut into bookable points. Zero fields
// take the defaults above; a nil Location means UTC.
type SlotPolicy struct {
	Step           time.Duration    `json:"step"`
	Location       *time.Location   `json:"-"`
	MinLeadTime    time.Duration    `json:"min_lead_time"`
	MaxAdvanceDays int              `json:"max_advance_days"`
	BreakStart     *model.TimeOfDay `json:"break_start,omitempty"`
	BreakEnd       *model.TimeOfDay `json:"break_end,omitempty"`
}

func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{
		Step:           DefaultStep,
		Location:       time.UTC,
		MinLeadTime:    DefaultMinLeadTime,
		MaxAdvanceDays: DefaultMaxAdvanceDays,
	}
}

// Normalize fills unset fields and checks the rest.
func (p SlotPolicy) Normalize() (SlotPolicy, error) {
	d := DefaultSlotPolicy()
	if p.Step == 0 {
		p.Step = d.Step
	}
	if p.Step < time.Minute || p.Step%time.Minute != 0 {
		return SlotPolicy{}, ErrInvalidStep
	}
	if p.Location == nil {
		p.Location = d.Location
	}
	if p.MinLeadTime < 0 {
		p.MinLeadTime = 0
	}
	if p.MaxAdvanceDays <= 0 {
		p.MaxAdvanceDays = d.MaxAdvanceDays
	}
	if (p.BreakStart == nil) != (p.BreakEnd == nil) {
		return SlotPolicy{}, errors.New("break start and end must be set together")
	}
	if p.BreakStart != nil && *p.BreakStart >= *p.BreakEnd {
		return SlotPolicy{}, fmt.Errorf("break start %s must be before end %s", p.BreakStart, p.BreakEnd)
	}
	return p, nil
}

func (p SlotPolicy) stepMinutes() model.TimeOfDay {
	return model.TimeOfDay(p.Step / time.Minute)
}

// inBreak reports whether the step starting at t overlaps the break.
func (p SlotPolicy) inBreak(t model.TimeOfDay) bool {
	return p.BreakStart != nil && t < *p.BreakEnd && t+p.stepMinutes() > *p.BreakStart
}

// Today is the current calendar date in the salon location.
func (p SlotPolicy) Today(now time.Time) time.Time {
	return model.DateIn(now, p.Location)
}

// ValidateDate rejects dates before today or more than MaxAdvanceDays ahead.
func (p SlotPolicy) ValidateDate(date, now time.Time) error {
	today := p.Today(now)
	if date.Before(today) {
		return ErrDateInPast
	}
	if date.After(today.AddDate(0, 0, p.MaxAdvanceDays)) {
		return fmt.Errorf("%w (%d days)", ErrDateTooFar, p.MaxAdvanceDays)
	}
	return nil
}

// Bookable reports whether the point is far enough in the future to accept a
// new reservation.
func (p SlotPolicy) Bookable(date time.Time, t model.TimeOfDay, now time.Time) bool {
	return !model.At(date, t, p.Location).Before(now.Add(p.MinLeadTime))
}
