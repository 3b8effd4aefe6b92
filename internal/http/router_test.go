package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-dental-backend/internal/config"
	"github.com/tbourn/go-dental-backend/internal/http/handlers"
	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/repo"
)

const testSecret = "router-test-secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   100,
		Clinic:      config.DefaultClinicPolicy(),
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, db *gorm.DB, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if err := RegisterRoutes(r, db, nil, cfg); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return r
}

func send(r http.Handler, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := middleware.MakeToken([]byte(testSecret), subject, role, time.Hour)
	if err != nil {
		t.Fatalf("MakeToken: %v", err)
	}
	return "Bearer " + tok
}

func booking(clock string) map[string]any {
	return map[string]any{
		"date": "2030-05-10", "time": clock, "duration": 30,
		"title": "Limpeza", "client_id": "c-1", "client_name": "Ana Lima", "value": 150,
	}
}

func TestRouter_EdgeEndpoints(t *testing.T) {
	r := newRouter(t, newTestDB(t), testConfig())

	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/appointments/missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := send(r, tc.method, tc.path, nil)
		if w.Code != tc.status {
			t.Errorf("%s %s = %d; want %d", tc.method, tc.path, w.Code, tc.status)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s %s: no X-Request-ID", tc.method, tc.path)
		}
	}

	w := send(r, http.MethodGet, "/health", nil)
	for h, want := range map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Cache-Control":               "private, no-cache",
	} {
		if got := w.Header().Get(h); got != want {
			t.Errorf("%s = %q; want %q", h, got, want)
		}
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://recepcao.example.com"}}
	r := newRouter(t, newTestDB(t), cfg)

	w := send(r, http.MethodGet, "/health", nil, "Origin", "https://recepcao.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://recepcao.example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	w = send(r, http.MethodGet, "/health", nil, "Origin", "https://evil.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be echoed, got %q", got)
	}
}

func TestHealth_DegradedWhenDatabaseDown(t *testing.T) {
	db := newTestDB(t)
	r := newRouter(t, db, testConfig())

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	if w := send(r, http.MethodGet, "/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with a closed database, got %d", w.Code)
	}
}

func TestGzip_CompressesWhenAccepted(t *testing.T) {
	r := newRouter(t, newTestDB(t), testConfig())
	w := send(r, http.MethodGet, "/health", nil, "Accept-Encoding", "gzip")
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q", got)
	}
}

func TestAuth_TokensAndRoles(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{JWTSecret: testSecret}
	r := newRouter(t, newTestDB(t), cfg)

	if w := send(r, http.MethodGet, "/api/v1/appointments", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	// health stays public
	if w := send(r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health with auth on: %d", w.Code)
	}

	staff := bearer(t, "u-staff", middleware.RoleStaff)
	if w := send(r, http.MethodGet, "/api/v1/appointments", nil, "Authorization", staff); w.Code != http.StatusOK {
		t.Fatalf("staff agenda: %d %s", w.Code, w.Body.String())
	}
	if w := send(r, http.MethodGet, "/api/v1/staff", nil, "Authorization", staff); w.Code != http.StatusForbidden {
		t.Fatalf("staff on admin routes: %d", w.Code)
	}

	admin := bearer(t, "u-admin", middleware.RoleAdmin)
	w := send(r, http.MethodPost, "/api/v1/staff", map[string]any{"email": "dra.carla@clinic.io"}, "Authorization", admin)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create staff: %d %s", w.Code, w.Body.String())
	}
}

func TestIdempotentBooking_ReplaysThroughLookup(t *testing.T) {
	db := newTestDB(t)
	r := newRouter(t, db, testConfig())

	w := send(r, http.MethodPost, "/api/v1/appointments", booking("09:00"), "X-User-ID", "u1", middleware.HeaderIdempotencyKey, "book-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("first: %d %s", w.Code, w.Body.String())
	}
	w = send(r, http.MethodPost, "/api/v1/appointments", booking("09:00"), "X-User-ID", "u1", middleware.HeaderIdempotencyKey, "book-1")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay: %d replayed=%q %s", w.Code, w.Header().Get("Idempotency-Replayed"), w.Body.String())
	}

	var n int64
	if err := db.Table("appointments").Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("appointments = %d (err=%v)", n, err)
	}

	w = send(r, http.MethodPost, "/api/v1/appointments", booking("09:00"), middleware.HeaderIdempotencyKey, "bad key!")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid key: %d", w.Code)
	}
}

func TestIdempotencyKey_OnlyHonoredOnBooking(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.001, 2
	r := newRouter(t, newTestDB(t), cfg)
	hdr := []string{"X-User-ID", "u1", middleware.HeaderIdempotencyKey, "book-7"}

	if w := send(r, http.MethodPost, "/api/v1/appointments", booking("09:00"), hdr...); w.Code != http.StatusCreated {
		t.Fatalf("book: %d %s", w.Code, w.Body.String())
	}
	// replays skip the limiter
	for i := 0; i < 3; i++ {
		if w := send(r, http.MethodPost, "/api/v1/appointments", booking("09:00"), hdr...); w.Code != http.StatusOK {
			t.Fatalf("replay %d: %d %s", i, w.Code, w.Body.String())
		}
	}

	// the same key on another write is neither a replay nor exempt
	if w := send(r, http.MethodPatch, "/api/v1/patients/nope", map[string]any{"name": "x"}, hdr...); w.Code != http.StatusNotFound {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	w := send(r, http.MethodPatch, "/api/v1/patients/nope", map[string]any{"name": "x"}, hdr...)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("second patch should be rate limited: %d %s", w.Code, w.Body.String())
	}
}

func TestClinicPolicy_AppliedToAgenda(t *testing.T) {
	cfg := testConfig()
	cfg.Clinic.Open, cfg.Clinic.Close = "08:00", "18:00"
	cfg.Clinic.DefaultDuration = 45
	r := newRouter(t, newTestDB(t), cfg)

	w := send(r, http.MethodPost, "/api/v1/appointments", booking("07:30"))
	var er handlers.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusBadRequest || er.Code != handlers.ErrCodeOutsideHours {
		t.Fatalf("07:30 should be closed: %d %s", w.Code, w.Body.String())
	}

	b := booking("08:00")
	delete(b, "duration")
	if w = send(r, http.MethodPost, "/api/v1/appointments", b); w.Code != http.StatusCreated {
		t.Fatalf("08:00: %d %s", w.Code, w.Body.String())
	}
	// 08:00 + 45 min blocks 08:30 but not 08:45
	if w = send(r, http.MethodPost, "/api/v1/appointments", booking("08:30")); w.Code != http.StatusBadRequest {
		t.Fatalf("08:30 should conflict: %d", w.Code)
	}
	if w = send(r, http.MethodPost, "/api/v1/appointments", booking("08:45")); w.Code != http.StatusCreated {
		t.Fatalf("08:45: %d %s", w.Code, w.Body.String())
	}
}

func TestNewAgenda_RejectsBadHours(t *testing.T) {
	cfg := testConfig()
	cfg.Clinic.Open, cfg.Clinic.Close = "19:00", "08:00"
	if _, err := newAgenda(newTestDB(t), nil, cfg); err == nil {
		t.Fatalf("inverted hours should fail")
	}
	if err := RegisterRoutes(gin.New(), newTestDB(t), nil, cfg); err == nil {
		t.Fatalf("RegisterRoutes should surface the policy error")
	}
}

func TestSwagger_OnlyWhenEnabled(t *testing.T) {
	if w := send(newRouter(t, newTestDB(t), testConfig()), http.MethodGet, "/swagger/doc.json", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	w := send(newRouter(t, newTestDB(t), cfg), http.MethodGet, "/swagger/doc.json", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("/appointments/{id}/complete")) {
		t.Fatalf("swagger doc: %d", w.Code)
	}
}

func TestBodyLimit_RejectsOversizedPayload(t *testing.T) {
	r := newRouter(t, newTestDB(t), testConfig())
	b := booking("09:00")
	b["title"] = strings.Repeat("a", maxBodyBytes)

	w := send(r, http.MethodPost, "/api/v1/appointments", b)
	var er handlers.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusRequestEntityTooLarge || er.Code != handlers.ErrCodeTooLarge {
		t.Fatalf("oversized body: %d %s", w.Code, w.Body.String())
	}
}

func TestAPIBasePath_Mounting(t *testing.T) {
	for _, tc := range []struct{ base, path string }{
		{"/", "/appointments"},
		{"", "/appointments"},
		{"/clinic/v2", "/clinic/v2/appointments"},
	} {
		cfg := testConfig()
		cfg.APIBasePath = tc.base
		r := newRouter(t, newTestDB(t), cfg)
		if w := send(r, http.MethodGet, tc.path, nil); w.Code != http.StatusOK {
			t.Errorf("base %q: GET %s = %d", tc.base, tc.path, w.Code)
		}
	}
}
