// Appointment HTTP handlers.
//
// This file exposes the agenda:
//   - POST   /appointments               (book; Idempotency-Key aware)
//   - GET    /appointments               (list, filtered and paginated, ETag support)
//   - GET    /appointments/stats         (totals and revenue over a range)
//   - GET    /appointments/{id}
//   - PUT    /appointments/{id}          (replace; conflict check when the slot changes)
//   - PATCH  /appointments/{id}          (patch; conflict check always)
//   - POST   /appointments/{id}/complete
//   - DELETE /appointments/{id}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/services"
)

//
// DTOs
//

// CreateAppointmentRequest is the JSON payload for booking an appointment.
type CreateAppointmentRequest struct {
	Date             string   `json:"date"              binding:"required,isodate"        example:"2024-05-10"`
	Time             string   `json:"time"              binding:"required,clock"          example:"09:30"`
	Duration         int      `json:"duration"          binding:"omitempty,min=0,max=720" example:"30"`
	Title            string   `json:"title"             binding:"required,max=255"        example:"Limpeza"`
	ClientID         string   `json:"client_id"         binding:"required,max=64"         example:"8a1f0d8e-4b8c-4c52-9d3f-3a2b1c0d9e8f"`
	ClientName       string   `json:"client_name"       binding:"required,max=255"        example:"Ana Lima"`
	Value            *float64 `json:"value"             binding:"required,min=0"          example:"150"`
	Note             string   `json:"note"`
	ProfessionalID   *string  `json:"professional_id"   binding:"omitempty,max=64"`
	ProfessionalName *string  `json:"professional_name" binding:"omitempty,max=255"`
}

// UpdateAppointmentRequest is the payload of PUT and PATCH. Every field is
// optional.
type UpdateAppointmentRequest struct {
	Date             *string  `json:"date"              binding:"omitempty,isodate"        example:"2024-05-10"`
	Time             *string  `json:"time"              binding:"omitempty,clock"          example:"10:00"`
	Duration         *int     `json:"duration"          binding:"omitempty,min=0,max=720"  example:"45"`
	Title            *string  `json:"title"             binding:"omitempty,max=255"`
	ClientID         *string  `json:"client_id"         binding:"omitempty,max=64"`
	ClientName       *string  `json:"client_name"       binding:"omitempty,max=255"`
	Value            *float64 `json:"value"             binding:"omitempty,min=0"`
	Note             *string  `json:"note"`
	ProfessionalID   *string  `json:"professional_id"   binding:"omitempty,max=64"`
	ProfessionalName *string  `json:"professional_name" binding:"omitempty,max=255"`
	Completed        *bool    `json:"completed"`
}

func (r UpdateAppointmentRequest) changes() services.AppointmentChanges {
	return services.AppointmentChanges{
		Date:             r.Date,
		Time:             r.Time,
		Duration:         r.Duration,
		Title:            r.Title,
		ClientID:         r.ClientID,
		ClientName:       r.ClientName,
		Value:            r.Value,
		Note:             r.Note,
		ProfessionalID:   r.ProfessionalID,
		ProfessionalName: r.ProfessionalName,
		Completed:        r.Completed,
	}
}

// AppointmentQuery holds the list and stats filters. Date wins over the
// start_date/end_date range.
type AppointmentQuery struct {
	Date           string `form:"date"            binding:"omitempty,isodate"`
	StartDate      string `form:"start_date"      binding:"omitempty,isodate"`
	EndDate        string `form:"end_date"        binding:"omitempty,isodate"`
	Query          string `form:"q"               binding:"omitempty,max=100"`
	ProfessionalID string `form:"professional_id" binding:"omitempty,max=64"`
	ClientID       string `form:"client_id"       binding:"omitempty,max=64"`
}

func (q AppointmentQuery) filter() repo.AppointmentFilter {
	return repo.AppointmentFilter{
		Date:           q.Date,
		StartDate:      q.StartDate,
		EndDate:        q.EndDate,
		Query:          q.Query,
		ProfessionalID: q.ProfessionalID,
		ClientID:       q.ClientID,
	}
}

// ListAppointmentsResponse wraps a page of the agenda.
type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
	Pagination   Pagination           `json:"pagination"`
}

//
// Handlers
//

// CreateAppointment godoc
// @ID          createAppointment
// @Summary     Book an appointment
// @Description Books a slot after checking business hours and overlaps with every appointment on the same date.
// @Description Supports idempotency via the Idempotency-Key header (same key → same appointment).
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateAppointmentRequest  true  "Appointment"
//
// @Success     201  {object}  domain.Appointment
// @Success     200  {object}  domain.Appointment      "Replayed (Idempotency-Replayed: true)"
// @Failure     400  {object}  handlers.ErrorResponse  "missing_fields, validation_error, outside_business_hours or time_conflict"
// @Failure     503  {object}  handlers.ErrorResponse  "Agenda busy"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /appointments [post]
func (h *Handlers) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.NewAppointment{
		Date:             req.Date,
		Time:             req.Time,
		Duration:         req.Duration,
		Title:            req.Title,
		ClientID:         req.ClientID,
		ClientName:       req.ClientName,
		Value:            req.Value,
		Note:             req.Note,
		ProfessionalID:   req.ProfessionalID,
		ProfessionalName: req.ProfessionalName,
	}

	ctx := c.Request.Context()
	if key, has := middleware.GetIdempotencyKey(c); has {
		a, replayed, err := h.appts.CreateIdempotent(ctx, userID(c), key, in)
		if err != nil {
			failService(c, err)
			return
		}
		if replayed {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, a)
			return
		}
		ok(c, http.StatusCreated, a)
		return
	}

	a, err := h.appts.Create(ctx, in)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, a)
}

// ListAppointments godoc
// @ID          listAppointments
// @Summary     List the agenda (paginated)
// @Description Returns appointments ordered by date and time. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match    header  string  false "Return 304 if ETag matches"
// @Param       date             query   string  false "Exact day (yyyy-mm-dd)"
// @Param       start_date       query   string  false "Range start, inclusive"
// @Param       end_date         query   string  false "Range end, inclusive"
// @Param       q                query   string  false "Text in title, client name or note"
// @Param       professional_id  query   string  false "Professional"
// @Param       client_id        query   string  false "Patient"
// @Param       page             query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size        query   int     false "Items per page"  minimum(1) maximum(100) default(50)
//
// @Success     200  {object} handlers.ListAppointmentsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /appointments [get]
func (h *Handlers) ListAppointments(c *gin.Context) {
	var q AppointmentQuery
	if !bindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()
	f := q.filter()
	page, pageSize := clampPagination(c, 50)

	// ETag pre-check (best effort).
	if count, latest, err := h.appts.Fingerprint(ctx, f); err == nil {
		if notModified(c, "appointments", count, latest) {
			return
		}
	}

	items, total, err := h.appts.List(ctx, f, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListAppointmentsResponse{Appointments: items, Pagination: paginate(page, pageSize, total)})
}

// AppointmentStats godoc
// @ID          appointmentStats
// @Summary     Agenda totals
// @Description Counts bookings and sums their value over the filtered agenda. revenue covers every booking, completed_revenue only completed ones.
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
//
// @Param       start_date  query  string  false "Range start, inclusive"  example(2024-05-01)
// @Param       end_date    query  string  false "Range end, inclusive"    example(2024-05-31)
//
// @Success     200  {object} repo.AppointmentTotals
// @Failure     400  {object} handlers.ErrorResponse "Bad filter"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /appointments/stats [get]
func (h *Handlers) AppointmentStats(c *gin.Context) {
	var q AppointmentQuery
	if !bindQuery(c, &q) {
		return
	}
	totals, err := h.appts.Stats(c.Request.Context(), q.filter())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, totals)
}

// GetAppointment godoc
// @ID          getAppointment
// @Summary     Get an appointment
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Appointment ID"
// @Success     200  {object} domain.Appointment
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /appointments/{id} [get]
func (h *Handlers) GetAppointment(c *gin.Context) {
	a, err := h.appts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// ReplaceAppointment godoc
// @ID          replaceAppointment
// @Summary     Replace appointment fields
// @Description Applies the sent fields. Overlaps are checked only when date, time or duration is sent; missing slot fields fall back to the stored ones.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Appointment ID"
// @Param       body  body  handlers.UpdateAppointmentRequest  true  "Fields to change"
// @Success     200  {object} domain.Appointment
// @Failure     400  {object} handlers.ErrorResponse "validation_error or time_conflict"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /appointments/{id} [put]
func (h *Handlers) ReplaceAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.appts.Replace(c.Request.Context(), c.Param("id"), req.changes())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// PatchAppointment godoc
// @ID          patchAppointment
// @Summary     Patch an appointment
// @Description Applies the sent fields, including completed, and always re-checks the merged slot for overlaps.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Appointment ID"
// @Param       body  body  handlers.UpdateAppointmentRequest  true  "Fields to change"
// @Success     200  {object} domain.Appointment
// @Failure     400  {object} handlers.ErrorResponse "validation_error or time_conflict"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /appointments/{id} [patch]
func (h *Handlers) PatchAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.appts.Patch(c.Request.Context(), c.Param("id"), req.changes())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// CompleteAppointment godoc
// @ID          completeAppointment
// @Summary     Mark an appointment as done
// @Tags        Appointments
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Appointment ID"
// @Success     200  {object} domain.Appointment
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /appointments/{id}/complete [post]
func (h *Handlers) CompleteAppointment(c *gin.Context) {
	a, err := h.appts.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteAppointment godoc
// @ID          deleteAppointment
// @Summary     Cancel an appointment
// @Tags        Appointments
// @Security    BearerAuth
// @Param       id   path  string  true  "Appointment ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /appointments/{id} [delete]
func (h *Handlers) DeleteAppointment(c *gin.Context) {
	if err := h.appts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
