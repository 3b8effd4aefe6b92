package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/services"
)

// ---------- test DB + router ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	appts  *services.AppointmentService
}

// newTestEnv mounts every route on real services backed by in-memory SQLite.
// Auth runs in open mode, so X-User-ID sets the caller.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	db := newHandlerDB(t)
	appts := services.NewAppointmentService(db, nil, nil)
	h := New(appts, services.NewPatientService(db), services.NewStaffService(db), services.NewRecordsService(db))

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Auth(middleware.AuthOptions{}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	mount(r, h)
	return &testEnv{db: db, router: r, appts: appts}
}

func mount(r gin.IRouter, h *Handlers) {
	r.POST("/appointments", h.CreateAppointment)
	r.GET("/appointments", h.ListAppointments)
	r.GET("/appointments/stats", h.AppointmentStats)
	r.GET("/appointments/:id", h.GetAppointment)
	r.PUT("/appointments/:id", h.ReplaceAppointment)
	r.PATCH("/appointments/:id", h.PatchAppointment)
	r.POST("/appointments/:id/complete", h.CompleteAppointment)
	r.DELETE("/appointments/:id", h.DeleteAppointment)

	r.POST("/patients", h.CreatePatient)
	r.GET("/patients", h.ListPatients)
	r.GET("/patients/search", h.SearchPatients)
	r.GET("/patients/:id", h.GetPatient)
	r.PATCH("/patients/:id", h.PatchPatient)
	r.DELETE("/patients/:id", h.DeletePatient)

	r.GET("/patients/:id/teeth", h.ListToothRecords)
	r.POST("/patients/:id/teeth", h.CreateToothRecord)
	r.PATCH("/patients/:id/teeth/:recordId", h.PatchToothRecord)
	r.GET("/patients/:id/plans", h.ListTreatmentPlans)
	r.POST("/patients/:id/plans", h.CreateTreatmentPlan)
	r.PATCH("/patients/:id/plans/:recordId", h.PatchTreatmentPlan)
	r.DELETE("/patients/:id/plans/:recordId", h.DeleteTreatmentPlan)
	r.GET("/patients/:id/notes", h.ListNotes)
	r.POST("/patients/:id/notes", h.CreateNote)
	r.PATCH("/patients/:id/notes/:recordId", h.PatchNote)
	r.DELETE("/patients/:id/notes/:recordId", h.DeleteNote)

	r.POST("/staff", h.CreateStaff)
	r.GET("/staff", h.ListStaff)
	r.GET("/staff/:id", h.GetStaff)
	r.PATCH("/staff/:id", h.PatchStaff)
	r.DELETE("/staff/:id", h.DeleteStaff)
}

// do sends a JSON request. body may be nil, a string, or any value to marshal.
func (e *testEnv) do(t *testing.T, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code {
		t.Fatalf("code = %q; want %q (body=%s)", er.Code, code, w.Body.String())
	}
	if er.RequestID == "" {
		t.Fatalf("missing request_id in error envelope")
	}
	return er
}
