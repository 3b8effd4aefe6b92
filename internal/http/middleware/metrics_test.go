package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/appointments/:id", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": c.Param("id")}) })
	r.DELETE("/appointments/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	get := func() float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/appointments/:id", "200"))
	}
	miss := func() float64 {
		return testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))
	}
	baseGet, baseMiss := get(), miss()

	for _, id := range []string{"a1", "b2", "c3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/appointments/"+id, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s -> %d", id, w.Code)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/appointments/a1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("DELETE -> %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patients/123-45/x", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route -> %d", w.Code)
	}

	if got := get(); got != baseGet+3 {
		t.Fatalf("three ids should share one series: %v, want %v", got, baseGet+3)
	}
	if got := miss(); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v, want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v after all requests finished", got)
	}
}

func TestMetrics_NoRawPathSeries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patients/98765", nil))

	// WithLabelValues would create the series, so read the exposition.
	m := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(m, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if strings.Contains(m.Body.String(), "98765") {
		t.Fatalf("raw path leaked into labels")
	}
	if !strings.Contains(m.Body.String(), `path="unmatched"`) {
		t.Fatalf("unmatched series missing")
	}
}
