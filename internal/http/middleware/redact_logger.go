// RedactingLogger is the access logger. Request and response bodies are
// never logged; the query string and header values are scrubbed of patient
// identifiers, and credential headers are masked outright.

package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-dental-backend/internal/sysutil"
)

const masked = "[REDACTED]"

// RedactOptions adds headers to the always-masked Authorization, Cookie and
// Set-Cookie. Names match case-insensitively.
type RedactOptions struct {
	MaskHeaders []string
}

type scrubRule struct {
	re    *regexp.Regexp
	label string
}

// scrubRules apply in order. The phone rule is the loosest and must run last
// so it does not swallow parts of ids or CPFs.
var scrubRules = []scrubRule{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`), "[REDACTED:cpf]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,5}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func redact(s string) string {
	for _, r := range scrubRules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, r.label)
	}
	return s
}

type headerMask map[string]struct{}

func newHeaderMask(extra []string) headerMask {
	m := headerMask{"authorization": {}, "cookie": {}, "set-cookie": {}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m[h] = struct{}{}
		}
	}
	return m
}

// scrub returns a loggable copy of h.
func (m headerMask) scrub(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, hide := m[strings.ToLower(k)]; hide {
			out[k] = masked
			continue
		}
		out[k] = redact(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger logs one line per request and attaches a request-scoped
// logger (see LoggerFrom). 4xx log at warn; 5xx and recorded gin errors log
// at error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	mask := newHeaderMask(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := redact(truncate(c.Request.URL.RawQuery, maxQueryLogLength))
		headers := mask.scrub(c.Request.Header)

		reqID := sysutil.FirstNonEmpty(RequestIDFrom(c), c.Writer.Header().Get(requestIDHeader), c.GetHeader(requestIDHeader))

		l := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		attachLogger(c, &l)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			ev = l.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}

		ev.
			Str("user_id", UserID(c)).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
