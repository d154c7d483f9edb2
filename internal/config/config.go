package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog backends.
const (
	CatalogMemory   = "memory"
	CatalogRedis    = "redis"
	CatalogPostgres = "postgres"
)

// Rate limit backends.
const (
	RateLimitSliding = "sliding"
	RateLimitFixed   = "fixed"
	RateLimitOff     = "off"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	CatalogBackend  string
	CatalogFile     string
	CatalogCacheTTL time.Duration
	DatabaseURL     string
	MigrateOnStart  bool
	RedisURL        string

	// Remote catalog stores are guarded by a circuit breaker; a zero
	// CatalogBreakerMinRequests disables it.
	CatalogBreakerMinRequests  int
	CatalogBreakerFailureRatio float64
	CatalogBreakerOpenFor      time.Duration

	OffersFile        string
	TellerConcurrency int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	CORSAllowedOrigins []string
	RateLimitBackend   string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	IdempotencyTTL     time.Duration
	BodyLimitBytes     int64

	EventsStream       string
	EventsStreamMaxLen int64

	TasksEnabled      bool
	TaskQueue         string
	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                     valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                       valueOrDefault(k.String("PORT"), "8080"),
		CatalogBackend:             strings.ToLower(valueOrDefault(k.String("CATALOG_BACKEND"), CatalogMemory)),
		CatalogFile:                strings.TrimSpace(k.String("CATALOG_FILE")),
		CatalogCacheTTL:            parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		DatabaseURL:                k.String("DATABASE_URL"),
		MigrateOnStart:             parseBool(k.String("MIGRATE_ON_START")),
		RedisURL:                   k.String("REDIS_URL"),
		CatalogBreakerMinRequests:  parseInt(k.String("CATALOG_BREAKER_MIN_REQUESTS"), 20),
		CatalogBreakerFailureRatio: parseFloat(k.String("CATALOG_BREAKER_FAILURE_RATIO"), 0.5),
		CatalogBreakerOpenFor:      parseDuration(k.String("CATALOG_BREAKER_OPEN_FOR"), "30s"),
		OffersFile:                 strings.TrimSpace(k.String("OFFERS_FILE")),
		TellerConcurrency:          parseInt(k.String("TELLER_CONCURRENCY"), 1),
		JWTSecret:                  k.String("JWT_SECRET"),
		JWTIssuer:                  strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:                strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins:         splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		RateLimitBackend:           strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_BACKEND"), RateLimitSliding)),
		RateLimitMax:               parseInt(k.String("RATE_LIMIT_MAX"), 120),
		RateLimitWindow:            parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		IdempotencyTTL:             parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:             int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
		EventsStream:               valueOrDefault(k.String("EVENTS_STREAM"), "receipts"),
		EventsStreamMaxLen:         int64(parseInt(k.String("EVENTS_STREAM_MAXLEN"), 10000)),
		TasksEnabled:               parseBool(k.String("TASKS_ENABLED")),
		TaskQueue:                  valueOrDefault(k.String("TASK_QUEUE"), "pricing"),
		WorkerConcurrency:          parseInt(k.String("WORKER_CONCURRENCY"), 5),
	}

	switch cfg.CatalogBackend {
	case CatalogMemory:
	case CatalogRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required for the redis catalog")
		}
	case CatalogPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres catalog")
		}
	default:
		return nil, fmt.Errorf("CATALOG_BACKEND %q is not supported", cfg.CatalogBackend)
	}
	switch cfg.RateLimitBackend {
	case RateLimitSliding, RateLimitFixed, RateLimitOff:
	default:
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND %q is not supported", cfg.RateLimitBackend)
	}
	if cfg.TasksEnabled && cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required when TASKS_ENABLED is set")
	}
	if cfg.TellerConcurrency < 1 {
		cfg.TellerConcurrency = 1
	}

	return cfg, nil
}

// HTTPAddr returns the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// AdminEnabled reports whether admin routes can verify tokens.
func (c *Config) AdminEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
