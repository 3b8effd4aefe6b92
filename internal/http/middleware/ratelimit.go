package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(*gin.Context) string

// KeyByUserOrIP keys by the authenticated user (set by Auth) and falls back
// to the client IP. Keys are prefixed so the two namespaces never collide.
func KeyByUserOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(ctxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-caller token bucket (golang.org/x/time/rate). It is
// process-local: with several instances each one enforces its own budget.
// Buckets idle for longer than idleTTL are swept at most once per idleTTL.
type RateLimiter struct {
	limit rate.Limit
	burst int
	key   KeyFunc

	mu        sync.Mutex
	buckets   map[string]*bucket
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter refills rps tokens per second up to burst (coerced to at
// least 1). rps 0 only lets the initial burst through.
func NewRateLimiter(rps float64, burst int, key KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(rps),
		burst:     burst,
		key:       key,
		buckets:   make(map[string]*bucket),
		idleTTL:   10 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// bucketFor returns the limiter for key. The sweep runs before the lookup
// so a stale bucket is replaced rather than refreshed.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// IsRateBypass reports whether IdempotencyValidator recognised the request
// as a replay, which is served without spending a token.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}

// Handler answers 429 too_many_requests with a Retry-After that tells the
// client when its next token is due.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		key := rl.key(c)
		lim := rl.bucketFor(key)
		now := rl.now()
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		wait := retryAfter(lim, now)
		rejected.WithLabelValues("too_many_requests").Inc()
		LoggerFrom(c).Warn().Str("bucket", key).Int("retry_after", wait).Msg("rate limit exceeded")
		c.Header("Retry-After", strconv.Itoa(wait))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter is the whole number of seconds until lim has a token again,
// at least 1. A bucket that never refills reports one minute.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return 60
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	if d == rate.InfDuration {
		return 60
	}
	return max(1, int(math.Ceil(d.Seconds())))
}
