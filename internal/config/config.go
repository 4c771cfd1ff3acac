// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Staging  StagingConfig
	Rate     RateLimitConfig
	CORS     CORSConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 4000)
	Port int `env:"SERVER_PORT" envDefault:"4000"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"2m"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP / X-Forwarded-For
	// headers are believed. Empty means client addresses are never rewritten.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES" envSeparator:","`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the connection string (required). postgres:// URLs use pgx,
	// sqlite: URLs use the embedded SQLite store. DB_URL is accepted as a fallback.
	URL string `env:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" envDefault:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" envDefault:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// EnsureSchema creates the staging and catalog tables on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" envDefault:"true"`
}

// UploadConfig holds ingestion settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 25MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"26214400"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" envDefault:"4"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" envDefault:"30s"`

	// Timeout is the maximum duration for a single ingestion (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"5m"`

	// PreviewSampleSize is how many invalid rows a preview returns (default: 20)
	PreviewSampleSize int `env:"UPLOAD_PREVIEW_SAMPLE_SIZE" envDefault:"20"`
}

// StagingConfig holds staging job housekeeping settings.
type StagingConfig struct {
	// ReaperEnabled controls the stale PROCESSING job reaper (default: true)
	ReaperEnabled bool `env:"STAGING_REAPER_ENABLED" envDefault:"true"`

	// StaleAfter is how long a job may stay PROCESSING before it is failed (default: 30m)
	StaleAfter time.Duration `env:"STAGING_STALE_AFTER" envDefault:"30m"`

	// ReaperInterval is how often the reaper runs (default: 5m)
	ReaperInterval time.Duration `env:"STAGING_REAPER_INTERVAL" envDefault:"5m"`

	// DefaultListLimit is the job list size when no limit is given (default: 50)
	DefaultListLimit int `env:"STAGING_LIST_LIMIT" envDefault:"50"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"120"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" envDefault:"10"`
}

// CORSConfig holds cross-origin settings for the dashboard frontend.
type CORSConfig struct {
	// AllowedOrigins is a comma-separated list of origins (default: http://localhost:5173)
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled serves /metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// IsSQLite reports whether the database URL selects the embedded SQLite store.
func (c *DatabaseConfig) IsSQLite() bool {
	return strings.HasPrefix(c.URL, "sqlite:")
}

// SQLitePath returns the file path portion of a sqlite: URL.
func (c *DatabaseConfig) SQLitePath() string {
	p := strings.TrimPrefix(c.URL, "sqlite:")
	return strings.TrimPrefix(p, "//")
}
