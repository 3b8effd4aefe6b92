package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's key on booking writes.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key IdempotencyValidator accepted.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result exists for the caller's key.
func IsReplay(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyIdemReplay)
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	MaxLen  int                       // 200 when <= 0
	Pattern *regexp.Regexp            // token characters when nil
	Scope   func(*gin.Context) string // "<METHOD> <route>" when nil; "" ignores the key
	Now     func() time.Time          // time.Now when nil
}

// IdempotencyLookup reports whether a still-valid result is stored for
// (userID, scope, key). Expiry is the lookup's business.
type IdempotencyLookup func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator checks the Idempotency-Key of POST, PUT, PATCH and
// DELETE requests. A malformed key is a 400 bad_idempotency_key. A known
// key marks the request as a replay, which also exempts it from rate
// limiting; handlers decide how to answer it. Safe methods, and routes the
// Scope maps to "", pass untouched. Lookup failures are logged and the
// request proceeds as a first attempt.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultIdemMaxLen
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultIdemPattern
	}
	if opts.Scope == nil {
		opts.Scope = routeScope
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		scope := opts.Scope(c)
		if scope == "" {
			c.Next()
			return
		}
		if len(key) > opts.MaxLen || !opts.Pattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			found, err := lookup(c.Request.Context(), userIDFromCtx(c), scope, key, opts.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency lookup failed")
			case found:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func routeScope(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return c.Request.Method + " " + path
}

// userIDFromCtx returns the caller set by Auth, or "anonymous".
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anonymous"
}
