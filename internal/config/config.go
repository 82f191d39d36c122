// Package config provides centralized configuration management for the
// import server and the terminal importer. It loads configuration from
// environment variables with sensible defaults and validates all settings on
// startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Import   ImportConfig
	Cache    CacheConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Terminal TerminalConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout covers slow analysis responses (default: 5m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// BackendConfig points at the analysis service.
type BackendConfig struct {
	// URL is the base URL of the analysis service (required)
	URL string `env:"ANALYSIS_API_URL" envAlt:"API_URL" required:"true"`

	// Token is the bearer token sent with every request
	Token string `env:"ANALYSIS_API_TOKEN" envAlt:"API_TOKEN"`

	// Timeout bounds a single backend request (default: 2m)
	Timeout time.Duration `env:"ANALYSIS_API_TIMEOUT" default:"2m"`

	// UserAgent identifies this client to the service
	UserAgent string `env:"ANALYSIS_API_USER_AGENT" default:"activity-import"`
}

// ImportConfig holds workflow limits.
type ImportConfig struct {
	// MaxFileSize is the largest accepted spreadsheet in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// BatchListLimit is how many batches the history shows (default: 20)
	BatchListLimit int `env:"IMPORT_BATCH_LIST_LIMIT" default:"20"`

	// MaxConcurrent bounds parallel preview/commit requests (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a request waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// SessionTTL expires idle browser workflows (default: 30m)
	SessionTTL time.Duration `env:"IMPORT_SESSION_TTL" default:"30m"`

	// DefaultMode is the mode a new workflow starts in (default: standard)
	DefaultMode string `env:"IMPORT_DEFAULT_MODE" default:"standard"`
}

// CacheConfig holds the downstream query cache settings.
type CacheConfig struct {
	// TTL is how long list responses are reused (default: 30s)
	TTL time.Duration `env:"CACHE_TTL" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// UploadLimit is requests per minute for file and commit endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// SecureCookies marks the session cookie Secure (default: false)
	SecureCookies bool `env:"SECURE_COOKIES" default:"false"`
}

// DatabaseConfig holds the optional audit database settings.
// Auditing is disabled when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// AuditRetention removes older audit entries; 0 keeps everything
	AuditRetention time.Duration `env:"AUDIT_RETENTION" default:"0s"`

	// AuditPurgeInterval is how often the retention policy runs (default: 24h)
	AuditPurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" default:"24h"`
}

// Enabled reports whether an audit database is configured.
func (c *DatabaseConfig) Enabled() bool { return c.URL != "" }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// TerminalConfig holds settings of the terminal importer.
type TerminalConfig struct {
	// ExportDir receives downloaded templates and CSV exports (default: accounting/exports)
	ExportDir string `env:"IMPORTER_EXPORT_DIR" default:"accounting/exports"`

	// LogFile receives the importer's logs; the terminal is owned by the UI (default: importer.log)
	LogFile string `env:"IMPORTER_LOG_FILE" default:"importer.log"`

	// PeriodID is the reporting period selected at startup
	PeriodID string `env:"IMPORTER_PERIOD_ID"`

	// SiteID is the site selected at startup
	SiteID string `env:"IMPORTER_SITE_ID"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
