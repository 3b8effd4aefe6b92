// Package scheduling holds the agenda rules that sit between the HTTP layer
// and the appointment store: turning (date, time, duration) triples into
// absolute intervals in the clinic's zone, deciding whether a candidate
// overlaps what is already booked, gating bookings to business hours, and
// serializing the read-check-write sequence per calendar day.
//
// Everything in this file is pure: no I/O, no logging, no shared state.
package scheduling

import (
	"fmt"
	"time"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

const startLayout = domain.DateLayout + "T" + domain.ClockLayout

// Slot is the scheduling-relevant part of an appointment.
type Slot struct {
	Date     string // yyyy-MM-dd
	Time     string // HH:mm
	Duration int    // minutes; <= 0 means DefaultDurationMinutes
}

// SlotOf extracts the Slot of a stored appointment.
func SlotOf(a domain.Appointment) Slot {
	return Slot{Date: a.Date, Time: a.Time, Duration: a.Duration}
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// EffectiveDuration substitutes the default for zero or negative durations.
// A zero duration occupies a full default slot, not an instant.
func EffectiveDuration(minutes int) int {
	if minutes <= 0 {
		return domain.DefaultDurationMinutes
	}
	return minutes
}

// ParseStart combines a calendar date and a wall-clock time in loc.
// A nil loc is treated as UTC.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(startLayout, date+"T"+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return t, nil
}

// Interval resolves the slot to an absolute interval in loc.
func (s Slot) Interval(loc *time.Location) (Interval, error) {
	start, err := ParseStart(s.Date, s.Time, loc)
	if err != nil {
		return Interval{}, err
	}
	end := start.Add(time.Duration(EffectiveDuration(s.Duration)) * time.Minute)
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether a and b share any instant. Touching boundaries
// (a.End == b.Start) do not overlap. The predicate is symmetric.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// HasConflict reports whether candidate overlaps any interval in existing.
func HasConflict(candidate Interval, existing []Interval) bool {
	for _, e := range existing {
		if Overlaps(e, candidate) {
			return true
		}
	}
	return false
}

// FindConflict returns the first appointment in existing whose interval
// overlaps candidate. Callers pass the same-day partition with the record
// being edited already removed. Rows whose stored date/time cannot be parsed
// are passed to skipped (when non-nil) and otherwise ignored: they cannot be
// placed on the timeline, so they never block a booking.
func FindConflict(candidate Interval, existing []domain.Appointment, loc *time.Location, skipped func(domain.Appointment, error)) (*domain.Appointment, bool) {
	for i := range existing {
		iv, err := SlotOf(existing[i]).Interval(loc)
		if err != nil {
			if skipped != nil {
				skipped(existing[i], err)
			}
			continue
		}
		if Overlaps(iv, candidate) {
			return &existing[i], true
		}
	}
	return nil, false
}
