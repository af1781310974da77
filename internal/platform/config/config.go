// Package config builds the process configuration from environment
// variables so main stays lean. Every tunable the services consume (rate
// limits, expiry windows, tag caps) lives here and is injected at
// construction — no package-level mutable constants.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all per-deployment settings.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Contacts ContactsConfig
	Forms    FormsConfig
	Sweep    SweepConfig
	Events   EventsConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr          string
	JWTSigningKey string
}

// PostgresConfig holds the relational store connection settings. An empty
// URL selects the in-memory stores (dev/test mode).
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional Redis connection settings. An empty URL
// disables Redis; the forms rate limiter then uses its in-memory counter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StorageConfig holds blob storage settings. An empty bucket selects the
// in-memory blob store.
type StorageConfig struct {
	Bucket    string
	Region    string
	URLExpiry time.Duration
}

// OCRConfig gates the synchronous OCR enrichment during business-card
// uploads. Enabled=false leaves new uploads in processing_status=pending.
type OCRConfig struct {
	Enabled bool
}

// ContactsConfig carries the contact lifecycle tunables.
type ContactsConfig struct {
	MaxUserTags     int
	MaxTagLength    int
	DeleteGraceDays int
}

// FormsConfig carries the public contact-capture form tunables.
type FormsConfig struct {
	DailySubmissionLimit int
	SubmissionExpiryDays int
}

// SweepConfig carries the background sweep cadence.
type SweepConfig struct {
	Interval time.Duration
}

// EventsConfig holds the optional lifecycle event broker settings. Empty
// brokers select the in-memory sink.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables, applying defaults
// suitable for local development.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:          envString("TWYM_ADDR", ":8080"),
			JWTSigningKey: envString("TWYM_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("TWYM_POSTGRES_URL"),
			MaxOpenConns:    envInt("TWYM_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns:    envInt("TWYM_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: envDuration("TWYM_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TWYM_REDIS_URL"),
			PoolSize:     envInt("TWYM_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TWYM_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TWYM_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TWYM_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TWYM_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("TWYM_STORAGE_BUCKET"),
			Region:    envString("TWYM_STORAGE_REGION", "us-east-1"),
			URLExpiry: envDuration("TWYM_STORAGE_URL_EXPIRY", 15*time.Minute),
		},
		OCR: OCRConfig{
			Enabled: os.Getenv("TWYM_OCR_ENABLED") == "true",
		},
		Contacts: ContactsConfig{
			MaxUserTags:     envInt("TWYM_MAX_USER_TAGS", 100),
			MaxTagLength:    envInt("TWYM_MAX_TAG_LENGTH", 32),
			DeleteGraceDays: envInt("TWYM_DELETE_GRACE_DAYS", 30),
		},
		Forms: FormsConfig{
			DailySubmissionLimit: envInt("TWYM_FORM_DAILY_LIMIT", 10),
			SubmissionExpiryDays: envInt("TWYM_SUBMISSION_EXPIRY_DAYS", 90),
		},
		Sweep: SweepConfig{
			Interval: envDuration("TWYM_SWEEP_INTERVAL", 24*time.Hour),
		},
		Events: EventsConfig{
			Brokers: splitNonEmpty(os.Getenv("TWYM_KAFKA_BROKERS")),
			Topic:   envString("TWYM_KAFKA_TOPIC", "twym.contact-events"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
