// Patient HTTP handlers.
//
//   - POST   /patients
//   - GET    /patients          (paginated, ETag support)
//   - GET    /patients/search   (?q=, ranked)
//   - GET    /patients/{id}
//   - PATCH  /patients/{id}
//   - DELETE /patients/{id}     (clinical records are removed with the patient)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/services"
	"github.com/tbourn/go-dental-backend/internal/utils"
)

// CreatePatientRequest is the JSON payload for registering a patient.
type CreatePatientRequest struct {
	Name                  string  `json:"name"                    binding:"required,max=255"     example:"Ana Lima"`
	Email                 string  `json:"email"                   binding:"required,email"       example:"ana@example.com"`
	Phone                 *string `json:"phone"                   binding:"omitempty,max=32"     example:"+55 11 98888-1111"`
	CPF                   *string `json:"cpf"                     binding:"omitempty,max=14"     example:"123.456.789-00"`
	BirthDate             *string `json:"birth_date"                                             example:"1990-04-12"`
	Address               *string `json:"address"`
	MedicalHistory        *string `json:"medical_history"`
	Allergies             *string `json:"allergies"`
	EmergencyContactName  *string `json:"emergency_contact_name"  binding:"omitempty,max=255"`
	EmergencyContactPhone *string `json:"emergency_contact_phone" binding:"omitempty,max=32"`
}

// UpdatePatientRequest is the PATCH payload; every field is optional.
type UpdatePatientRequest struct {
	Name                  *string `json:"name"                    binding:"omitempty,max=255"`
	Email                 *string `json:"email"                   binding:"omitempty,email"`
	Phone                 *string `json:"phone"                   binding:"omitempty,max=32"`
	CPF                   *string `json:"cpf"                     binding:"omitempty,max=14"`
	BirthDate             *string `json:"birth_date"`
	Address               *string `json:"address"`
	MedicalHistory        *string `json:"medical_history"`
	Allergies             *string `json:"allergies"`
	EmergencyContactName  *string `json:"emergency_contact_name"  binding:"omitempty,max=255"`
	EmergencyContactPhone *string `json:"emergency_contact_phone" binding:"omitempty,max=32"`
	Active                *bool   `json:"active"`
}

// ListPatientsResponse wraps a page of patients.
type ListPatientsResponse struct {
	Patients   []domain.Patient `json:"patients"`
	Pagination Pagination       `json:"pagination"`
}

// SearchPatientsResponse lists patients best match first.
type SearchPatientsResponse struct {
	Patients []domain.Patient `json:"patients"`
}

// CreatePatient godoc
// @ID          createPatient
// @Summary     Register a patient
// @Description Name and email are required; the email must be unused. An unparseable birth_date is ignored.
// @Tags        Patients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreatePatientRequest  true  "Patient"
// @Success     201  {object} domain.Patient
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /patients [post]
func (h *Handlers) CreatePatient(c *gin.Context) {
	var req CreatePatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.patients.Create(c.Request.Context(), services.NewPatient{
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 req.Phone,
		CPF:                   req.CPF,
		BirthDate:             req.BirthDate,
		Address:               req.Address,
		MedicalHistory:        req.MedicalHistory,
		Allergies:             req.Allergies,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListPatients godoc
// @ID          listPatients
// @Summary     List patients (paginated)
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Patients
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListPatientsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Router      /patients [get]
func (h *Handlers) ListPatients(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c, 20)

	if count, latest, err := h.patients.Fingerprint(ctx); err == nil {
		if notModified(c, "patients", count, latest) {
			return
		}
	}

	items, total, err := h.patients.ListPage(ctx, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListPatientsResponse{Patients: items, Pagination: paginate(page, pageSize, total)})
}

// SearchPatients godoc
// @ID          searchPatients
// @Summary     Search patients
// @Description Ranks patients by token overlap with q over name, email, phone and CPF. Accents and case are ignored.
// @Tags        Patients
// @Produce     json
// @Security    BearerAuth
// @Param       q      query  string  true   "Search text"  example(joao silva)
// @Param       limit  query  int     false  "Max results"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.SearchPatientsResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing q"
// @Router      /patients/search [get]
func (h *Handlers) SearchPatients(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		failWith(c, http.StatusBadRequest, ErrorResponse{Code: ErrCodeMissingFields, Message: "q: required", Fields: []string{"q"}})
		return
	}
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), 20), 1, 100)

	items, err := h.patients.Search(c.Request.Context(), q, limit)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, SearchPatientsResponse{Patients: items})
}

// GetPatient godoc
// @ID          getPatient
// @Summary     Get a patient
// @Tags        Patients
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Patient ID"
// @Success     200  {object} domain.Patient
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id} [get]
func (h *Handlers) GetPatient(c *gin.Context) {
	p, err := h.patients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// PatchPatient godoc
// @ID          patchPatient
// @Summary     Update a patient
// @Tags        Patients
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Patient ID"
// @Param       body  body  handlers.UpdatePatientRequest  true  "Fields to change"
// @Success     200  {object} domain.Patient
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     409  {object} handlers.ErrorResponse "Email already registered"
// @Router      /patients/{id} [patch]
func (h *Handlers) PatchPatient(c *gin.Context) {
	var req UpdatePatientRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.patients.Patch(c.Request.Context(), c.Param("id"), services.PatientChanges{
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 req.Phone,
		CPF:                   req.CPF,
		BirthDate:             req.BirthDate,
		Address:               req.Address,
		MedicalHistory:        req.MedicalHistory,
		Allergies:             req.Allergies,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		Active:                req.Active,
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePatient godoc
// @ID          deletePatient
// @Summary     Delete a patient and their records
// @Tags        Patients
// @Security    BearerAuth
// @Param       id   path  string  true  "Patient ID"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /patients/{id} [delete]
func (h *Handlers) DeletePatient(c *gin.Context) {
	if err := h.patients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
