package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects the optional headers of SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Only turn
	// it on when the hop between proxy and service is HTTPS too.
	EnableHSTS bool
	HSTSMaxAge time.Duration // 180 days when <= 0

	// NoStore forbids any caching. Private lets the client keep a copy it
	// must revalidate (If-None-Match); shared caches never store either way.
	// NoStore wins when both are set.
	NoStore bool
	Private bool

	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies for browser clients.
	EnablePolicy bool
}

type headerPair struct{ name, value string }

// SecurityHeaders hardens JSON responses. The static set is resolved once;
// only HSTS and the request-id exposure depend on the request.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			headerPair{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerPair{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	switch {
	case opt.NoStore:
		static = append(static,
			headerPair{"Cache-Control", "no-store"},
			headerPair{"Pragma", "no-cache"},
			headerPair{"Expires", "0"},
		)
	case opt.Private:
		static = append(static, headerPair{"Cache-Control", "private, no-cache"})
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, p := range static {
			h.Set(p.name, p.value)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		// Browsers may only read the correlation id when it is exposed.
		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		c.Next()
	}
}

// exposeHeader adds name to Access-Control-Expose-Headers unless listed.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	for _, tok := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), name) {
			return
		}
	}
	if cur == "" {
		h.Set(key, name)
		return
	}
	h.Set(key, cur+", "+name)
}

// isHTTPS trusts X-Forwarded-Proto from the reverse proxy.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
