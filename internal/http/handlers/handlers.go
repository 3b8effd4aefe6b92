// Package handlers exposes the REST endpoints of the clinic back office.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the interfaces below, and translate results
// into HTTP responses (including conditional and idempotent replays).
package handlers

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/services"
	"github.com/tbourn/go-dental-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AppointmentService is the agenda as seen by the HTTP layer.
type AppointmentService interface {
	Create(ctx context.Context, in services.NewAppointment) (*domain.Appointment, error)
	CreateIdempotent(ctx context.Context, userID, key string, in services.NewAppointment) (*domain.Appointment, bool, error)
	Get(ctx context.Context, id string) (*domain.Appointment, error)
	List(ctx context.Context, f repo.AppointmentFilter, page, pageSize int) ([]domain.Appointment, int64, error)
	Fingerprint(ctx context.Context, f repo.AppointmentFilter) (int64, *time.Time, error)
	Stats(ctx context.Context, f repo.AppointmentFilter) (repo.AppointmentTotals, error)
	Replace(ctx context.Context, id string, ch services.AppointmentChanges) (*domain.Appointment, error)
	Patch(ctx context.Context, id string, ch services.AppointmentChanges) (*domain.Appointment, error)
	Complete(ctx context.Context, id string) (*domain.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// PatientService is the patient registry.
type PatientService interface {
	Create(ctx context.Context, in services.NewPatient) (*domain.Patient, error)
	Get(ctx context.Context, id string) (*domain.Patient, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Patient, int64, error)
	Fingerprint(ctx context.Context) (int64, *time.Time, error)
	Patch(ctx context.Context, id string, ch services.PatientChanges) (*domain.Patient, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q string, limit int) ([]domain.Patient, error)
}

// StaffService is the staff registry.
type StaffService interface {
	Create(ctx context.Context, name, email, role string) (*domain.Staff, error)
	Get(ctx context.Context, id string) (*domain.Staff, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Staff, int64, error)
	Patch(ctx context.Context, id string, ch services.StaffChanges) (*domain.Staff, error)
	Delete(ctx context.Context, id string) error
}

// RecordsService holds the clinical records of each patient.
type RecordsService interface {
	AddToothRecord(ctx context.Context, patientID string, in services.NewToothRecord) (*domain.ToothRecord, error)
	UpdateToothRecord(ctx context.Context, patientID, id string, ch services.ToothRecordChanges) (*domain.ToothRecord, error)
	ListToothRecords(ctx context.Context, patientID string) ([]domain.ToothRecord, error)

	AddTreatmentPlan(ctx context.Context, patientID string, in services.NewTreatmentPlan) (*domain.TreatmentPlan, error)
	UpdateTreatmentPlan(ctx context.Context, patientID, id string, ch services.TreatmentPlanChanges) (*domain.TreatmentPlan, error)
	DeleteTreatmentPlan(ctx context.Context, patientID, id string) error
	ListTreatmentPlans(ctx context.Context, patientID string) ([]domain.TreatmentPlan, error)

	AddNote(ctx context.Context, patientID, content, noteType string) (*domain.PatientNote, error)
	UpdateNote(ctx context.Context, patientID, id string, ch services.PatientNoteChanges) (*domain.PatientNote, error)
	DeleteNote(ctx context.Context, patientID, id string) error
	ListNotes(ctx context.Context, patientID string) ([]domain.PatientNote, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of every resource.
type Handlers struct {
	appts    AppointmentService
	patients PatientService
	staff    StaffService
	records  RecordsService
}

// New constructs a Handlers bound to the given services.
func New(appts AppointmentService, patients PatientService, staff StaffService, records RecordsService) *Handlers {
	return &Handlers{appts: appts, patients: patients, staff: staff, records: records}
}

// userID returns the caller identity set by the auth middleware.
func userID(c *gin.Context) string { return middleware.UserID(c) }

//
// Pagination
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context, defaultPageSize int) (page, pageSize int) {
	const maxPageSize = 100
	page = utils.Clamp(utils.AtoiDefault(c.Query("page"), 1), 1, 1<<20)
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Conditional responses
//

// notModified sets a weak ETag built from the collection fingerprint and the
// canonical query string, and answers 304 when If-None-Match matches.
func notModified(c *gin.Context, kind string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(c.Request.URL.Query().Encode()))

	etag := fmt.Sprintf(`W/"%s:%08x:%d:%d"`, kind, h.Sum32(), count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
