package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // clinic zones must resolve in minimal images

	"github.com/BurntSushi/toml"
)

const clockLayout = "15:04"

// ClinicPolicy is the scheduling policy of the clinic. It can be kept in a
// TOML file (CLINIC_POLICY_FILE):
//
//	open = "07:00"
//	close = "22:00"
//	default_duration = 60
//	enforce_hours_on_update = false
//	timezone = "America/Sao_Paulo"
type ClinicPolicy struct {
	Open                 string `toml:"open"`
	Close                string `toml:"close"`
	DefaultDuration      int    `toml:"default_duration"`
	EnforceHoursOnUpdate bool   `toml:"enforce_hours_on_update"`
	Timezone             string `toml:"timezone"`

	loc *time.Location
}

// DefaultClinicPolicy opens 07:00–22:00 UTC with one-hour bookings.
func DefaultClinicPolicy() ClinicPolicy {
	return ClinicPolicy{
		Open:            "07:00",
		Close:           "22:00",
		DefaultDuration: 60,
		Timezone:        "UTC",
		loc:             time.UTC,
	}
}

// LoadClinicPolicy decodes path over the defaults. Keys absent from the
// file keep their default value; unknown keys are an error.
func LoadClinicPolicy(path string) (ClinicPolicy, error) {
	p := DefaultClinicPolicy()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return p, fmt.Errorf("clinic policy %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, 0, len(undec))
		for _, k := range undec {
			keys = append(keys, k.String())
		}
		return p, fmt.Errorf("clinic policy %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return p, nil
}

// Validate checks the window and the zone, and caches the resolved zone.
func (p *ClinicPolicy) Validate() error {
	open, err := time.Parse(clockLayout, p.Open)
	if err != nil {
		return fmt.Errorf("clinic open %q must be HH:mm", p.Open)
	}
	closing, err := time.Parse(clockLayout, p.Close)
	if err != nil {
		return fmt.Errorf("clinic close %q must be HH:mm", p.Close)
	}
	if closing.Before(open) {
		return errors.New("clinic must close after it opens")
	}
	if p.DefaultDuration <= 0 {
		return errors.New("default_duration must be > 0")
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE %q: %w", p.Timezone, err)
	}
	p.loc = loc
	return nil
}

// Location returns the validated clinic zone, UTC before Validate.
func (p ClinicPolicy) Location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}
