// Package services defines the business logic for the clinic agenda,
// patients, staff, and clinical records. This file centralizes service-level
// error values so that they can be consistently returned by service methods
// and checked by callers with errors.Is / errors.As.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// Agenda errors.
var (
	// ErrAppointmentNotFound indicates that the requested appointment does
	// not exist.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrTimeConflict is matched by every *ConflictError.
	ErrTimeConflict = errors.New("time slot unavailable")

	// ErrOutsideBusinessHours is wrapped by the ValidationError returned when
	// a booking starts outside the clinic's opening hours.
	ErrOutsideBusinessHours = errors.New("time outside business hours")

	// ErrMissingFields is wrapped by the ValidationError returned when
	// required fields are absent.
	ErrMissingFields = errors.New("missing required fields")
)

// Patient, staff, and record errors.
var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrStaffNotFound   = errors.New("staff member not found")
	ErrRecordNotFound  = errors.New("record not found")

	// ErrEmailTaken is returned when an email is already registered for
	// another patient (or staff member).
	ErrEmailTaken = errors.New("email already registered")
)

// ValidationError reports invalid input. Err, when set, is a sentinel the
// caller can match with errors.Is (ErrMissingFields, ErrOutsideBusinessHours).
type ValidationError struct {
	Fields []string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Fields, ", "), e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Fields: []string{field}, Reason: reason}
}

func missing(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: "required", Err: ErrMissingFields}
}

// ConflictError reports that a candidate slot overlaps an existing
// appointment on the same day.
type ConflictError struct {
	Date          string
	Time          string
	Duration      int
	ConflictingID string
	ConflictsAt   string // start time of the blocking appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot unavailable: %s %s (%d min) overlaps appointment at %s",
		e.Date, e.Time, e.Duration, e.ConflictsAt)
}

func (e *ConflictError) Unwrap() error { return ErrTimeConflict }
