package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type errSentinel struct{}

func (errSentinel) Error() string { return "handler failed" }

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := withCapturedLogger(t)

	// Simulate upstream RequestID middleware that sets response header
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))

	r.GET("/patients/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Raw query is redacted with regex (no parsing), so simple occurrences are enough
	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000&cpf=123.456.789-00"
	req := httptest.NewRequest(http.MethodGet, "/patients/123?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	// response header request id wins over the request header
	req.Header.Set("X-Request-ID", "rid-req")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/patients/:id"`,
		`"request_id":"rid-resp"`,
		`[REDACTED:email]`, `[REDACTED:phone]`, `[REDACTED:id]`, `[REDACTED:cpf]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]"`,
		`"user_id":"anonymous"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log line lacks %s", want)
		}
	}
	for _, leak := range []string{"789-00", "example.com", "topsecret", "shhh"} {
		if strings.Contains(logs, leak) {
			t.Errorf("raw value %q leaked", leak)
		}
	}
	if t.Failed() {
		t.Logf("log: %s", logs)
	}
}

func TestHeaderMask(t *testing.T) {
	m := newHeaderMask([]string{" X-CPF ", ""})
	got := m.scrub(map[string][]string{
		"Set-Cookie": {"a=b"},
		"X-Cpf":      {"123.456.789-00"},
		"Accept":     {"application/json", "text/plain"},
	})
	want := map[string]string{
		"Set-Cookie": masked,
		"X-Cpf":      masked,
		"Accept":     "application/json, text/plain",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q; want %q", k, got[k], v)
		}
	}
	if len(m) != 4 {
		t.Fatalf("blank names should be ignored: %v", m)
	}
}

func TestRedactingLogger_LevelsFollowStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	buf := withCapturedLogger(t)

	r.Use(RedactingLogger(RedactOptions{}))

	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/gin-error", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	reqWarn := httptest.NewRequest(http.MethodGet, "/warn", nil)
	reqWarn.Header.Set("X-Request-ID", "rid-warn")
	r.ServeHTTP(httptest.NewRecorder(), reqWarn)

	reqErr := httptest.NewRequest(http.MethodGet, "/error", nil)
	reqErr.Header.Set("X-Request-ID", "rid-err")
	r.ServeHTTP(httptest.NewRecorder(), reqErr)

	reqGinErr := httptest.NewRequest(http.MethodGet, "/gin-error", nil)
	reqGinErr.Header.Set("X-Request-ID", "rid-gin")
	r.ServeHTTP(httptest.NewRecorder(), reqGinErr)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	find := func(rid string) string {
		for _, l := range lines {
			if strings.Contains(l, `"request_id":"`+rid+`"`) {
				return l
			}
		}
		t.Fatalf("no log line for %s in:\n%s", rid, buf.String())
		return ""
	}
	if l := find("rid-warn"); !strings.Contains(l, `"level":"warn"`) {
		t.Fatalf("404 should log at warn: %s", l)
	}
	if l := find("rid-err"); !strings.Contains(l, `"level":"error"`) {
		t.Fatalf("500 should log at error: %s", l)
	}
	if l := find("rid-gin"); !strings.Contains(l, `"level":"error"`) || !strings.Contains(l, `"errors"`) {
		t.Fatalf("gin errors should log at error with details: %s", l)
	}
}

func TestRedact_CPFBeforePhone(t *testing.T) {
	cases := map[string]string{
		"cpf=12345678900":     "cpf=[REDACTED:cpf]",
		"cpf=123.456.789-00":  "cpf=[REDACTED:cpf]",
		"tel=11 98888-1111":   "tel=[REDACTED:phone]",
		"date=2024-05-10":     "date=2024-05-10",
		"":                    "",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q; want %q", in, got, want)
		}
	}
}
