package model

import (
	"strings"
	"time"
)

type Service struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Staff struct {
	ID         string
	Name       string
	Email      string
	Active     bool
	ServiceIDs []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Product struct {
	ID          string
	Name        string
	Description string
	PriceCents  int64
	Stock       int
	ImageURL    string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkingHoursWindow is one recurring weekly interval [Start, End) during
// which a staff member can be booked. Weekday follows time.Weekday.
type WorkingHoursWindow struct {
	ID        string
	StaffID   string
	StaffName string
	Weekday   int
	Start     TimeOfDay
	End       TimeOfDay
}

// Offers reports whether a slot of length step starting at t is one of the
// points generated from the window: on the step grid from Start and ending
// no later than End.
func (w WorkingHoursWindow) Offers(t, step TimeOfDay) bool {
	if step <= 0 || t < w.Start || t+step > w.End {
		return false
	}
	return (t-w.Start)%step == 0
}

// Validate checks the weekday and that the window is a non-empty part of
// one day.
func (w WorkingHoursWindow) Validate() error {
	if w.Weekday < 0 || w.Weekday > 6 {
		return Invalid("weekday", "must be between 0 (Sunday) and 6 (Saturday)")
	}
	if w.Start < 0 || w.End > MinutesPerDay || w.Start >= w.End {
		return Invalid("end", "must be after start and no later than 24:00")
	}
	return nil
}

// ReservedSlot is the part of a reservation the availability check needs.
type ReservedSlot struct {
	StaffID string
	Time    TimeOfDay
}

func (s Service) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return Invalid("name", "is required")
	case s.DurationMinutes <= 0 || s.DurationMinutes > int(MinutesPerDay):
		return Invalid("duration_minutes", "must be between 1 and 1440")
	case s.PriceCents < 0:
		return Invalid("price_cents", "must not be negative")
	}
	return nil
}

func (s Staff) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return Invalid("name", "is required")
	}
	return nil
}

func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return Invalid("name", "is required")
	case p.PriceCents < 0:
		return Invalid("price_cents", "must not be negative")
	case p.Stock < 0:
		return Invalid("stock", "must not be negative")
	}
	return nil
}
