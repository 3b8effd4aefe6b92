// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint. All errors
// leave through fail() with an ErrorResponse carrying a stable code, so
// clients can branch on codes rather than messages.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "time_conflict",
//	  "message": "time slot unavailable",
//	  "details": {"date": "2024-05-10", "time": "09:30", "duration": 30, "conflicts_at": "09:00"}
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"appointment not found"`
	// Fields lists the offending request fields of a validation error.
	Fields []string `json:"fields,omitempty"`
	// Details describes the blocking appointment of a time conflict.
	Details *ConflictDetails `json:"details,omitempty"`
}

// ConflictDetails names the slot that was refused and where it collides.
type ConflictDetails struct {
	Date          string `json:"date"           example:"2024-05-10"`
	Time          string `json:"time"           example:"09:30"`
	Duration      int    `json:"duration"       example:"30"`
	ConflictsAt   string `json:"conflicts_at"   example:"09:00"`
	ConflictingID string `json:"conflicting_id" example:"0c4f5a8e-2b1d-4a7e-9d8f-1e2a3b4c5d6e"`
}

// fail aborts the request with a structured error. Server errors (>=500) are
// logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
