package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/services"
)

// CreateToothRecordRequest adds a procedure on one tooth (FDI numbering).
type CreateToothRecordRequest struct {
	ToothNumber int      `json:"tooth_number" binding:"required"               example:"36"`
	Procedure   string   `json:"procedure"    binding:"required,max=128"       example:"root canal"`
	Status      string   `json:"status"                                        example:"planned"`
	Priority    string   `json:"priority"                                      example:"high"`
	Notes       *string  `json:"notes"`
	Cost        *float64 `json:"cost"         binding:"omitempty,min=0"        example:"850"`
}

// UpdateToothRecordRequest is the PATCH payload for a tooth record.
type UpdateToothRecordRequest struct {
	Procedure *string  `json:"procedure" binding:"omitempty,max=128"`
	Status    *string  `json:"status"`
	Priority  *string  `json:"priority"`
	Notes     *string  `json:"notes"`
	Cost      *float64 `json:"cost"      binding:"omitempty,min=0"`
}

// CreateTreatmentPlanRequest opens a treatment plan.
type CreateTreatmentPlanRequest struct {
	Title             string   `json:"title"              binding:"required,max=255" example:"Full rehabilitation"`
	Description       string   `json:"description"`
	Status            string   `json:"status"                                        example:"draft"`
	EstimatedCost     *float64 `json:"estimated_cost"     binding:"omitempty,min=0"`
	EstimatedSessions *int     `json:"estimated_sessions" binding:"omitempty,min=0"`
}

// UpdateTreatmentPlanRequest is the PATCH payload for a plan.
type UpdateTreatmentPlanRequest struct {
	Title             *string  `json:"title"              binding:"omitempty,max=255"`
	Description       *string  `json:"description"`
	Status            *string  `json:"status"`
	EstimatedCost     *float64 `json:"estimated_cost"     binding:"omitempty,min=0"`
	EstimatedSessions *int     `json:"estimated_sessions" binding:"omitempty,min=0"`
}

// CreateNoteRequest attaches a note to a patient.
type CreateNoteRequest struct {
	Content  string `json:"content"   binding:"required" example:"Prefers morning slots"`
	NoteType string `json:"note_type"                    example:"general"`
}

// UpdateNoteRequest is the PATCH payload for a note.
type UpdateNoteRequest struct {
	Content  *string `json:"content"`
	NoteType *string `json:"note_type"`
}

// ListToothRecords godoc
// @ID          listToothRecords
// @Summary     Odontogram of a patient
// @Tags        Records
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Patient ID"
// @Success     200  {array}  domain.ToothRecord
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/teeth [get]
func (h *Handlers) ListToothRecords(c *gin.Context) {
	items, err := h.records.ListToothRecords(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateToothRecord godoc
// @ID          createToothRecord
// @Summary     Add a tooth record
// @Description tooth_number uses FDI notation (11-48 permanent, 51-85 deciduous).
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Patient ID"
// @Param       body  body  handlers.CreateToothRecordRequest  true  "Tooth record"
// @Success     201  {object} domain.ToothRecord
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/teeth [post]
func (h *Handlers) CreateToothRecord(c *gin.Context) {
	var req CreateToothRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.records.AddToothRecord(c.Request.Context(), c.Param("id"), services.NewToothRecord{
		ToothNumber: req.ToothNumber,
		Procedure:   req.Procedure,
		Status:      req.Status,
		Priority:    req.Priority,
		Notes:       req.Notes,
		Cost:        req.Cost,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, rec)
}

// PatchToothRecord godoc
// @ID          patchToothRecord
// @Summary     Update a tooth record
// @Description Moving to completed stamps completed_at.
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string  true  "Patient ID"
// @Param       recordId  path  string  true  "Tooth record ID"
// @Param       body      body  handlers.UpdateToothRecordRequest  true  "Fields to change"
// @Success     200  {object} domain.ToothRecord
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id}/teeth/{recordId} [patch]
func (h *Handlers) PatchToothRecord(c *gin.Context) {
	var req UpdateToothRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.records.UpdateToothRecord(c.Request.Context(), c.Param("id"), c.Param("recordId"), services.ToothRecordChanges{
		Procedure: req.Procedure,
		Status:    req.Status,
		Priority:  req.Priority,
		Notes:     req.Notes,
		Cost:      req.Cost,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

// ListTreatmentPlans godoc
// @ID          listTreatmentPlans
// @Summary     Treatment plans of a patient
// @Tags        Records
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Patient ID"
// @Success     200  {array}  domain.TreatmentPlan
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/plans [get]
func (h *Handlers) ListTreatmentPlans(c *gin.Context) {
	items, err := h.records.ListTreatmentPlans(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateTreatmentPlan godoc
// @ID          createTreatmentPlan
// @Summary     Open a treatment plan
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Patient ID"
// @Param       body  body  handlers.CreateTreatmentPlanRequest  true  "Plan"
// @Success     201  {object} domain.TreatmentPlan
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/plans [post]
func (h *Handlers) CreateTreatmentPlan(c *gin.Context) {
	var req CreateTreatmentPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.records.AddTreatmentPlan(c.Request.Context(), c.Param("id"), services.NewTreatmentPlan{
		Title:             req.Title,
		Description:       req.Description,
		Status:            req.Status,
		EstimatedCost:     req.EstimatedCost,
		EstimatedSessions: req.EstimatedSessions,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, plan)
}

// PatchTreatmentPlan godoc
// @ID          patchTreatmentPlan
// @Summary     Update a treatment plan
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string  true  "Patient ID"
// @Param       recordId  path  string  true  "Plan ID"
// @Param       body      body  handlers.UpdateTreatmentPlanRequest  true  "Fields to change"
// @Success     200  {object} domain.TreatmentPlan
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id}/plans/{recordId} [patch]
func (h *Handlers) PatchTreatmentPlan(c *gin.Context) {
	var req UpdateTreatmentPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.records.UpdateTreatmentPlan(c.Request.Context(), c.Param("id"), c.Param("recordId"), services.TreatmentPlanChanges{
		Title:             req.Title,
		Description:       req.Description,
		Status:            req.Status,
		EstimatedCost:     req.EstimatedCost,
		EstimatedSessions: req.EstimatedSessions,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, plan)
}

// DeleteTreatmentPlan godoc
// @ID          deleteTreatmentPlan
// @Summary     Delete a treatment plan
// @Tags        Records
// @Security    BearerAuth
// @Param       id        path  string  true  "Patient ID"
// @Param       recordId  path  string  true  "Plan ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id}/plans/{recordId} [delete]
func (h *Handlers) DeleteTreatmentPlan(c *gin.Context) {
	if err := h.records.DeleteTreatmentPlan(c.Request.Context(), c.Param("id"), c.Param("recordId")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ListNotes godoc
// @ID          listNotes
// @Summary     Notes of a patient
// @Tags        Records
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Patient ID"
// @Success     200  {array}  domain.PatientNote
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/notes [get]
func (h *Handlers) ListNotes(c *gin.Context) {
	items, err := h.records.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateNote godoc
// @ID          createNote
// @Summary     Add a note
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Patient ID"
// @Param       body  body  handlers.CreateNoteRequest  true  "Note"
// @Success     201  {object} domain.PatientNote
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Patient not found"
// @Router      /patients/{id}/notes [post]
func (h *Handlers) CreateNote(c *gin.Context) {
	var req CreateNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.records.AddNote(c.Request.Context(), c.Param("id"), req.Content, req.NoteType)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// PatchNote godoc
// @ID          patchNote
// @Summary     Update a note
// @Tags        Records
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  string  true  "Patient ID"
// @Param       recordId  path  string  true  "Note ID"
// @Param       body      body  handlers.UpdateNoteRequest  true  "Fields to change"
// @Success     200  {object} domain.PatientNote
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id}/notes/{recordId} [patch]
func (h *Handlers) PatchNote(c *gin.Context) {
	var req UpdateNoteRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.records.UpdateNote(c.Request.Context(), c.Param("id"), c.Param("recordId"), services.PatientNoteChanges{
		Content:  req.Content,
		NoteType: req.NoteType,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// DeleteNote godoc
// @ID          deleteNote
// @Summary     Delete a note
// @Tags        Records
// @Security    BearerAuth
// @Param       id        path  string  true  "Patient ID"
// @Param       recordId  path  string  true  "Note ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id}/notes/{recordId} [delete]
func (h *Handlers) DeleteNote(c *gin.Context) {
	if err := h.records.DeleteNote(c.Request.Context(), c.Param("id"), c.Param("recordId")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
