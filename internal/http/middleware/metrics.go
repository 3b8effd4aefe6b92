package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route. Raw paths
// would carry patient and appointment ids into the label set.
const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP request latency by method and route.",
			// Booking writes wait on the day lock, so the tail goes up to
			// the lock timeout.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "HTTP response body size by method and route.",
			// 128B up to 512KiB; a full day agenda is the largest payload.
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"method", "path"},
	)

	// rejected counts requests turned away before a handler ran, by reason
	// (unauthorized, forbidden, too_many_requests).
	rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_rejected_total",
			Help: "Requests rejected by auth or rate limiting.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, rejected)
}

// Metrics records Prometheus request metrics labelled by the route template
// (c.FullPath), so /appointments/:id is one series however many ids exist.
// Mount promhttp.Handler on /metrics next to it.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInflight.Inc()
		start := time.Now()

		c.Next()

		httpInflight.Dec()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (204, 304).
		if n := c.Writer.Size(); n >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}
