package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

// BusinessHours is the inclusive window of start times accepted for new
// bookings, in minutes since midnight.
type BusinessHours struct {
	Open  int
	Close int
}

// DefaultBusinessHours accepts starts from 07:00 through 22:00.
var DefaultBusinessHours = BusinessHours{Open: 7 * 60, Close: 22 * 60}

// ParseClock parses an HH:mm string into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(domain.ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// NewBusinessHours builds a window from two HH:mm strings.
func NewBusinessHours(open, close string) (BusinessHours, error) {
	o, err := ParseClock(open)
	if err != nil {
		return BusinessHours{}, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return BusinessHours{}, err
	}
	if c < o {
		return BusinessHours{}, errors.New("business hours close before they open")
	}
	return BusinessHours{Open: o, Close: c}, nil
}

// Within reports whether an appointment may start at clock. Both ends of the
// window are inclusive at minute precision, so with the defaults 06:59 and
// 22:01 are rejected while 07:00 and 22:00 are accepted. Unparseable input
// is rejected.
func (h BusinessHours) Within(clock string) bool {
	m, err := ParseClock(clock)
	if err != nil {
		return false
	}
	return m >= h.Open && m <= h.Close
}

// String renders the window as "HH:mm-HH:mm".
func (h BusinessHours) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", h.Open/60, h.Open%60, h.Close/60, h.Close%60)
}

// NormalizeClock parses s and renders it zero-padded ("7:05" -> "07:05"), so
// stored times sort lexically in chronological order.
func NormalizeClock(s string) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60), nil
}
