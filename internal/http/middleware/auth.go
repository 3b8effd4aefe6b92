// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer authentication with HS256 JWTs. Verified
// tokens set the caller identity ("userID") and role ("role") in the Gin
// context; RequireRole gates admin-only routes.
//
// With an empty secret the middleware runs in open mode: every caller is an
// admin and the identity is read from X-User-ID. Use it for local setups and
// tests only.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyRole   = "role"

	headerUserID = "X-User-ID"

	// RoleAdmin may manage staff.
	RoleAdmin = domain.RoleAdmin
	// RoleStaff is the default role.
	RoleStaff = domain.RoleStaff
)

// ErrBadToken is returned by ParseToken for tokens that fail verification.
var ErrBadToken = errors.New("invalid token")

// Claims is the token payload: subject is the staff id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HS256 key. Empty enables open mode.
	Secret []byte
	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// MakeToken signs a token for subject with the given role and lifetime.
func MakeToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// ParseToken verifies raw and returns its claims.
func ParseToken(raw string, opts AuthOptions) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return opts.Secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return nil, ErrBadToken
	}
	return c, nil
}

// Auth authenticates requests from the Authorization: Bearer header and
// answers 401 when the token is missing or invalid.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(opts.Secret) == 0 {
			if uid := strings.TrimSpace(c.GetHeader(headerUserID)); uid != "" {
				c.Set(ctxKeyUserID, uid)
			}
			c.Set(ctxKeyRole, RoleAdmin)
			c.Next()
			return
		}

		raw, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := ParseToken(strings.TrimSpace(raw), opts)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		role := claims.Role
		if role == "" {
			role = RoleStaff
		}
		c.Set(ctxKeyUserID, claims.Subject)
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// RequireRole answers 403 unless the caller holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		have := Role(c)
		for _, r := range roles {
			if have == r {
				c.Next()
				return
			}
		}
		abortAuth(c, http.StatusForbidden, "forbidden", "insufficient role")
	}
}

// UserID returns the authenticated caller, or "anonymous".
func UserID(c *gin.Context) string { return userIDFromCtx(c) }

// Role returns the caller's role, or "" when unauthenticated.
func Role(c *gin.Context) string {
	v, _ := c.Get(ctxKeyRole)
	return asString(v)
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	rejected.WithLabelValues(code).Inc()
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
