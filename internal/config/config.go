// Package config provides application configuration loaded from environment
// variables with defaults and validation, plus the clinic scheduling policy
// which may also come from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "dental-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig configures bearer token verification. An empty secret leaves
// the API open, which is only meant for local development.
type AuthConfig struct {
	JWTSecret string // AUTH_JWT_SECRET
	Issuer    string // AUTH_JWT_ISSUER (optional)
}

// Enabled reports whether tokens are required.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// BookingConfig tunes the per-day booking lock.
type BookingConfig struct {
	RedisAddr     string        // REDIS_ADDR; empty keeps locks in process
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
	LockTTL       time.Duration // BOOKING_LOCK_TTL, lease of a Redis lock
	LockTimeout   time.Duration // BOOKING_LOCK_TIMEOUT, max wait for a day lock
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver string // sqlite|postgres
	DBDSN    string // Postgres DSN
	DBPath   string // SQLite path

	// Clinic
	Clinic  ClinicPolicy
	Booking BookingConfig
	Auth    AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL   time.Duration // how long a given Idempotency-Key is valid
	IdempotencyPurge time.Duration // interval of the expired-key sweep

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for main packages: it panics on an invalid environment.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds the configuration from the environment and validates it.
// Unparseable numbers, booleans and durations fall back to their default.
// All validation problems are reported together.
func Load() (Config, error) {
	cfg := Config{
		Port:              envString("PORT", "8080"),
		ReadTimeout:       envOr("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
		ReadHeaderTimeout: envOr("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
		WriteTimeout:      envOr("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
		IdleTimeout:       envOr("IDLE_TIMEOUT", 60*time.Second, time.ParseDuration),
		MaxHeaderBytes:    envOr("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		GinMode:           strings.ToLower(envString("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPretty:      envOr("LOG_PRETTY", false, parseBool),
		SwaggerEnabled: envOr("SWAGGER_ENABLED", false, parseBool),
		APIBasePath:    normalizeBasePath(envString("API_BASE_PATH", "/api/v1")),

		DBDriver: strings.ToLower(envString("DB_DRIVER", "sqlite")),
		DBDSN:    envString("DB_DSN", ""),
		DBPath:   envString("DB_PATH", "clinic.db"),

		Clinic: DefaultClinicPolicy(),
		Booking: BookingConfig{
			RedisAddr:     envString("REDIS_ADDR", ""),
			RedisPassword: envString("REDIS_PASSWORD", ""),
			RedisDB:       envOr("REDIS_DB", 0, strconv.Atoi),
			LockTTL:       envOr("BOOKING_LOCK_TTL", 10*time.Second, time.ParseDuration),
			LockTimeout:   envOr("BOOKING_LOCK_TIMEOUT", 5*time.Second, time.ParseDuration),
		},
		Auth: AuthConfig{
			JWTSecret: envString("AUTH_JWT_SECRET", ""),
			Issuer:    envString("AUTH_JWT_ISSUER", ""),
		},

		RateRPS:   envOr("RATE_RPS", 5.0, parseFloat),
		RateBurst: envOr("RATE_BURST", 10, strconv.Atoi),

		CORS: CORSConfig{AllowedOrigins: splitCSV(envString("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: envOr("ENABLE_HSTS", false, parseBool),
			HSTSMaxAge: envOr("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},

		IdempotencyTTL:   envOr("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),
		IdempotencyPurge: envOr("IDEMPOTENCY_PURGE_INTERVAL", time.Hour, time.ParseDuration),

		OTEL: OTELConfig{
			Enabled:     envOr("OTEL_ENABLED", false, parseBool),
			Endpoint:    envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envOr("OTEL_EXPORTER_OTLP_INSECURE", true, parseBool),
			ServiceName: envString("OTEL_SERVICE_NAME", "dental-backend"),
			SampleRatio: envOr("OTEL_TRACES_SAMPLER_ARG", 1.0, parseFloat),
		},
	}

	// The policy file is the base; CLINIC_TIMEZONE overrides its zone.
	if path := envString("CLINIC_POLICY_FILE", ""); path != "" {
		p, err := LoadClinicPolicy(path)
		if err != nil {
			return cfg, err
		}
		cfg.Clinic = p
	}
	if tz := envString("CLINIC_TIMEZONE", ""); tz != "" {
		cfg.Clinic.Timezone = tz
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

// validate resolves the clinic zone as a side effect.
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q must be one of: debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DBDSN) != "", "DB_DSN is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be one of: sqlite, postgres", c.DBDriver))
	}
	if err := c.Clinic.Validate(); err != nil {
		errs = append(errs, err)
	}
	check(c.Booking.LockTTL > 0 && c.Booking.LockTimeout > 0,
		"BOOKING_LOCK_TTL and BOOKING_LOCK_TIMEOUT must be > 0")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.IdempotencyPurge > 0, "IDEMPOTENCY_PURGE_INTERVAL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// envString returns the variable, or def when unset or empty.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envOr parses the variable with parse, or returns def when it is unset,
// empty or malformed.
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return out
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

var errNotBool = errors.New("not a boolean")

// parseBool accepts the spellings operators tend to put in .env files.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errNotBool
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath yields "/" or a path with a leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
