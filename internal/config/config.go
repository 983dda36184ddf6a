package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=recipe_manager port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:3000"
)

type Config struct {
	AppEnv       string
	LogLevel     string
	HTTPPort     string
	RealtimePort string
	DatabaseDSN  string
	JWTSecret    string
	CORSOrigins  string

	// Recipe images live on local disk and are served under PublicBaseURL.
	RecipeImagePath string
	PublicBaseURL   string
	MaxUploadBytes  int64

	// Empty RedisURL keeps sessions and the change feed in-process.
	RedisURL   string
	SessionTTL time.Duration

	PinAttemptsPerMinute int
	PinBurst             int

	RefetchDebounce  time.Duration
	RefetchMaxWait   time.Duration
	LowStockSchedule string
}

// Load reads .env (when present) and the process environment. Parse errors
// fall back to defaults and are reported by Validate.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		RealtimePort:         getEnv("REALTIME_PORT", "8081"),
		DatabaseDSN:          getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		CORSOrigins:          getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		RecipeImagePath:      getEnv("RECIPE_IMAGE_PATH", "./recipe-images"),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		MaxUploadBytes:       getInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
		RedisURL:             getEnv("REDIS_URL", ""),
		SessionTTL:           getDuration("SESSION_TTL", 12*time.Hour),
		PinAttemptsPerMinute: getInt("PIN_ATTEMPTS_PER_MINUTE", 5),
		PinBurst:             getInt("PIN_BURST", 5),
		RefetchDebounce:      getDuration("REFETCH_DEBOUNCE", 300*time.Millisecond),
		RefetchMaxWait:       getDuration("REFETCH_MAX_WAIT", time.Second),
		LowStockSchedule:     getEnv("LOW_STOCK_SCHEDULE", "@every 15m"),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.PinAttemptsPerMinute <= 0 || c.PinBurst <= 0 {
		errs = append(errs, errors.New("PIN_ATTEMPTS_PER_MINUTE and PIN_BURST must be positive"))
	}
	if c.RefetchDebounce <= 0 || c.RefetchMaxWait < c.RefetchDebounce {
		errs = append(errs, errors.New("REFETCH_MAX_WAIT must be >= REFETCH_DEBOUNCE > 0"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Warnings lists settings that are fine locally but should be overridden in production.
func (c *Config) Warnings() []string {
	var w []string
	if c.DatabaseDSN == defaultDSN {
		w = append(w, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		w = append(w, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	return w
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return def
	}
	return v
}
