package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testSecret = []byte("test-secret")

func authRouter(opts AuthOptions, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(opts))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "role": Role(c)})
	})
	r.GET("/who", handlers...)
	return r
}

func doAuth(r http.Handler, bearer string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_ValidToken_SetsIdentity(t *testing.T) {
	tok, err := MakeToken(testSecret, "staff-1", RoleStaff, time.Minute)
	if err != nil {
		t.Fatalf("MakeToken: %v", err)
	}
	w := doAuth(authRouter(AuthOptions{Secret: testSecret}), tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["user"] != "staff-1" || body["role"] != RoleStaff {
		t.Fatalf("unexpected identity: %v", body)
	}
}

func TestAuth_Rejections(t *testing.T) {
	expired, _ := MakeToken(testSecret, "staff-1", RoleStaff, -time.Minute)
	wrongKey, _ := MakeToken([]byte("other"), "staff-1", RoleStaff, time.Minute)
	noSubject, _ := MakeToken(testSecret, "", RoleStaff, time.Minute)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	base := testutil.ToFloat64(rejected.WithLabelValues("unauthorized"))

	cases := map[string]string{
		"missing":    "",
		"garbage":    "not-a-jwt",
		"expired":    expired,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"alg none":   none,
	}
	r := authRouter(AuthOptions{Secret: testSecret})
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			w := doAuth(r, tok, nil)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d; want 401", w.Code)
			}
			var body map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["code"] != "unauthorized" {
				t.Fatalf("code = %v", body["code"])
			}
		})
	}
	if got := testutil.ToFloat64(rejected.WithLabelValues("unauthorized")); got != base+float64(len(cases)) {
		t.Fatalf("rejected counter = %v; want %v", got, base+float64(len(cases)))
	}
}

func TestAuth_Issuer(t *testing.T) {
	c := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin-1",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(testSecret)

	if _, err := ParseToken(tok, AuthOptions{Secret: testSecret, Issuer: "clinicd"}); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	if _, err := ParseToken(tok, AuthOptions{Secret: testSecret}); err != nil {
		t.Fatalf("no issuer configured should accept: %v", err)
	}
}

func TestAuth_OpenMode(t *testing.T) {
	r := authRouter(AuthOptions{})

	w := doAuth(r, "", map[string]string{"X-User-ID": "front-desk"})
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || body["user"] != "front-desk" || body["role"] != RoleAdmin {
		t.Fatalf("open mode: status=%d body=%v", w.Code, body)
	}

	w = doAuth(r, "", nil)
	body = nil
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["user"] != "anonymous" {
		t.Fatalf("expected anonymous, got %v", body)
	}
}

func TestRequireRole(t *testing.T) {
	admin, _ := MakeToken(testSecret, "a1", RoleAdmin, time.Minute)
	staff, _ := MakeToken(testSecret, "s1", "", time.Minute) // empty role means staff

	r := authRouter(AuthOptions{Secret: testSecret}, RequireRole(RoleAdmin))

	if w := doAuth(r, admin, nil); w.Code != http.StatusOK {
		t.Fatalf("admin: status = %d", w.Code)
	}
	w := doAuth(r, staff, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("staff: status = %d; want 403", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["code"] != "forbidden" {
		t.Fatalf("code = %v", body["code"])
	}
}
