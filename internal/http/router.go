// Package httpapi wires the HTTP transport (Gin) to the clinic services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Middleware order:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. CORS and security headers
//
// and, on the API group only:
//  8. Auth (bearer JWT, or open mode without a secret)
//  9. Idempotency validator on booking creation (needs the user from Auth)
//  10. Rate limiter per user, bypassed on idempotent replays
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/docs"
	"github.com/tbourn/go-dental-backend/internal/config"
	"github.com/tbourn/go-dental-backend/internal/http/handlers"
	"github.com/tbourn/go-dental-backend/internal/http/middleware"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/scheduling"
	"github.com/tbourn/go-dental-backend/internal/services"
)

// maxBodyBytes caps request bodies; clinic payloads are small JSON documents.
const maxBodyBytes = 1 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the versioned API under cfg.APIBasePath. A nil locker
// keeps day locks in process.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, locker scheduling.Locker, cfg config.Config) error {
	agenda, err := newAgenda(db, locker, cfg)
	if err != nil {
		return err
	}
	handlers.RegisterValidators()

	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key", "X-CPF"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	useCORS(r, cfg.CORS)

	// Patient data must not land in shared caches.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		Private:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(db))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		agenda,
		services.NewPatientService(db),
		services.NewStaffService(db),
		services.NewRecordsService(db),
	)

	api := groupWithPrefix(r, cfg.APIBasePath)
	bookingRoute := strings.TrimSuffix(api.BasePath(), "/") + "/appointments"
	api.Use(middleware.Auth(middleware.AuthOptions{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
	}))
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scope:  bookingScope(bookingRoute),
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, repo.IdemKey{UserID: userID, Scope: scope, Key: key}, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil && rec != nil, err
		},
	))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())

	mountAppointments(api, h)
	mountPatients(api, h)
	mountStaff(api.Group("", middleware.RequireRole(middleware.RoleAdmin)), h)
	return nil
}

// newAgenda builds the appointment service from the clinic policy. Zero
// values in cfg keep the service defaults.
func newAgenda(db *gorm.DB, locker scheduling.Locker, cfg config.Config) (*services.AppointmentService, error) {
	svc := services.NewAppointmentService(db, locker, cfg.Clinic.Location())

	p := cfg.Clinic
	if p.Open != "" || p.Close != "" {
		hours, err := scheduling.NewBusinessHours(p.Open, p.Close)
		if err != nil {
			return nil, fmt.Errorf("clinic hours: %w", err)
		}
		svc.Hours = hours
	}
	if p.DefaultDuration > 0 {
		svc.DefaultDuration = p.DefaultDuration
	}
	svc.EnforceHoursOnUpdate = p.EnforceHoursOnUpdate
	if cfg.Booking.LockTimeout > 0 {
		svc.LockTimeout = cfg.Booking.LockTimeout
	}
	if cfg.IdempotencyTTL > 0 {
		svc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	return svc, nil
}

// bookingScope honors Idempotency-Key on booking creation only, the one
// write that stores and replays results.
func bookingScope(route string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		if c.Request.Method == http.MethodPost && c.FullPath() == route {
			return services.IdempotencyScopeAppointments
		}
		return ""
	}
}

func mountAppointments(g gin.IRouter, h *handlers.Handlers) {
	g.POST("/appointments", h.CreateAppointment)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/stats", h.AppointmentStats)
	g.GET("/appointments/:id", h.GetAppointment)
	g.PUT("/appointments/:id", h.ReplaceAppointment)
	g.PATCH("/appointments/:id", h.PatchAppointment)
	g.POST("/appointments/:id/complete", h.CompleteAppointment)
	g.DELETE("/appointments/:id", h.DeleteAppointment)
}

func mountPatients(g gin.IRouter, h *handlers.Handlers) {
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/search", h.SearchPatients)
	g.GET("/patients/:id", h.GetPatient)
	g.PATCH("/patients/:id", h.PatchPatient)
	g.DELETE("/patients/:id", h.DeletePatient)

	g.GET("/patients/:id/teeth", h.ListToothRecords)
	g.POST("/patients/:id/teeth", h.CreateToothRecord)
	g.PATCH("/patients/:id/teeth/:recordId", h.PatchToothRecord)

	g.GET("/patients/:id/plans", h.ListTreatmentPlans)
	g.POST("/patients/:id/plans", h.CreateTreatmentPlan)
	g.PATCH("/patients/:id/plans/:recordId", h.PatchTreatmentPlan)
	g.DELETE("/patients/:id/plans/:recordId", h.DeleteTreatmentPlan)

	g.GET("/patients/:id/notes", h.ListNotes)
	g.POST("/patients/:id/notes", h.CreateNote)
	g.PATCH("/patients/:id/notes/:recordId", h.PatchNote)
	g.DELETE("/patients/:id/notes/:recordId", h.DeleteNote)
}

func mountStaff(g gin.IRouter, h *handlers.Handlers) {
	g.POST("/staff", h.CreateStaff)
	g.GET("/staff", h.ListStaff)
	g.GET("/staff/:id", h.GetStaff)
	g.PATCH("/staff/:id", h.PatchStaff)
	g.DELETE("/staff/:id", h.DeleteStaff)
}

// useCORS installs gin-contrib/cors. Without an allowlist every origin is
// accepted (credentials off); with one, allowed origins are echoed back.
func useCORS(r *gin.Engine, opts config.CORSConfig) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(opts.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header (health checks, curl).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = opts.AllowedOrigins
	r.Use(cors.New(base))
}

// health reports liveness plus a database ping.
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Msg("health: database unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
