// Package config loads the service configuration from environment variables.
// Every setting has a default except the database URL, and the whole
// configuration is validated at startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Cache    CacheConfig
	Events   EventsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so the progress stream is not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds ordinary API requests. Uploads run matching
	// inline and get ImportConfig.CommitTimeout instead.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL accepts DATABASE_URL or DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending schema migrations at startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds reconciliation settings.
type ImportConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 20MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// ChunkSize is the number of records per inventory commit call.
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"10"`

	// CallTimeout bounds each catalog and inventory call.
	CallTimeout time.Duration `env:"IMPORT_CALL_TIMEOUT" default:"15s"`

	// CommitTimeout bounds a whole commit run.
	CommitTimeout time.Duration `env:"IMPORT_COMMIT_TIMEOUT" default:"10m"`

	MaxConcurrentCommits int           `env:"IMPORT_MAX_CONCURRENT_COMMITS" default:"4"`
	CommitWaitTime       time.Duration `env:"IMPORT_COMMIT_WAIT_TIME" default:"30s"`

	// CandidateLimit caps the candidates kept per similar record.
	CandidateLimit int `env:"IMPORT_CANDIDATE_LIMIT" default:"25"`

	DefaultMode string `env:"IMPORT_DEFAULT_MODE" default:"existing"`

	// SessionTTL is how long an untouched session is kept.
	SessionTTL      time.Duration `env:"IMPORT_SESSION_TTL" default:"4h"`
	JanitorInterval time.Duration `env:"IMPORT_JANITOR_INTERVAL" default:"10m"`
}

// CacheConfig controls the Redis catalog lookup cache.
type CacheConfig struct {
	Enabled  bool          `env:"CACHE_ENABLED" default:"false"`
	RedisURL string        `env:"REDIS_URL" default:"redis://localhost:6379/0"`
	TTL      time.Duration `env:"CACHE_TTL" default:"5m"`
}

// EventsConfig controls commit event publishing to Kafka.
type EventsConfig struct {
	Enabled bool     `env:"EVENTS_ENABLED" default:"false"`
	Brokers []string `env:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `env:"KAFKA_TOPIC" default:"inventory.import.committed"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
	Burst             int  `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
