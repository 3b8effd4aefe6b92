// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes (time_conflict, outside_business_hours, missing_fields) let
// clients tell apart the different reasons a booking is refused, which all
// share status 400.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeValidation       = "validation_error"
	ErrCodeMissingFields    = "missing_fields"
	ErrCodeOutsideHours     = "outside_business_hours"
	ErrCodeTimeConflict     = "time_conflict"
	ErrCodeEmailTaken       = "email_taken"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTooLarge         = "payload_too_large"
)

// failService translates a service error into the matching response. Store
// and unexpected errors are logged and answered with an opaque 500.
func failService(c *gin.Context, err error) {
	var (
		ce *services.ConflictError
		ve *services.ValidationError
	)
	switch {
	case errors.As(err, &ce):
		failWith(c, http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeTimeConflict,
			Message: services.ErrTimeConflict.Error(),
			Details: &ConflictDetails{
				Date:          ce.Date,
				Time:          ce.Time,
				Duration:      ce.Duration,
				ConflictsAt:   ce.ConflictsAt,
				ConflictingID: ce.ConflictingID,
			},
		})
	case errors.As(err, &ve):
		code := ErrCodeValidation
		switch {
		case errors.Is(err, services.ErrMissingFields):
			code = ErrCodeMissingFields
		case errors.Is(err, services.ErrOutsideBusinessHours):
			code = ErrCodeOutsideHours
		}
		failWith(c, http.StatusBadRequest, ErrorResponse{Code: code, Message: ve.Error(), Fields: ve.Fields})
	case errors.Is(err, services.ErrAppointmentNotFound),
		errors.Is(err, services.ErrPatientNotFound),
		errors.Is(err, services.ErrStaffNotFound),
		errors.Is(err, services.ErrRecordNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		fail(c, http.StatusConflict, ErrCodeEmailTaken, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		// Waiting for the agenda lock timed out.
		c.Header("Retry-After", "1")
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "agenda busy, retry")
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
