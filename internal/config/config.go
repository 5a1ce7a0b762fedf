// Package config provides centralized configuration management for the application.
// Settings come from environment variables (optionally via a .env file) and an
// optional YAML file named by CONFIG_FILE. Environment variables win over the
// file, and the file wins over defaults. Everything is validated on startup so
// misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Upload      UploadConfig      `yaml:"upload" envconfig:"UPLOAD"`
	Rate        RateLimitConfig   `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Security    SecurityConfig    `yaml:"security" envconfig:"SECURITY"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOG"`
	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet" envconfig:"SPREADSHEET"`
	Database    DatabaseConfig    `yaml:"database" envconfig:"DATABASE"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to
	Host string `yaml:"host" envconfig:"HOST" default:"0.0.0.0"`

	// Port is the port to listen on
	Port int `yaml:"port" envconfig:"PORT" default:"8080"`

	// ReadTimeout bounds reading the whole request, uploads included
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"60s"`

	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for a request
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"90s"`
}

// UploadConfig holds upload and cleaning settings.
type UploadConfig struct {
	// MaxFileSize is the maximum size of one file in bytes (default: 50MB)
	MaxFileSize int64 `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE" default:"52428800"`

	// MaxFiles is the maximum number of files in one request
	MaxFiles int `yaml:"max_files" envconfig:"MAX_FILES" default:"20"`

	// MaxConcurrent is how many requests are cleaned at once
	MaxConcurrent int `yaml:"max_concurrent" envconfig:"MAX_CONCURRENT" default:"4"`

	// MaxWait is how long a request waits for a cleaning slot
	MaxWait time.Duration `yaml:"max_wait" envconfig:"MAX_WAIT" default:"30s"`

	// Workers is how many files of one batch are cleaned in parallel
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"2"`

	// PreviewRows is the number of rows shown per file
	PreviewRows int `yaml:"preview_rows" envconfig:"PREVIEW_ROWS" default:"5"`

	// ArtifactTTL is how long a cleaned file can be downloaded
	ArtifactTTL time.Duration `yaml:"artifact_ttl" envconfig:"ARTIFACT_TTL" default:"15m"`

	// JanitorInterval is how often expired downloads are removed
	JanitorInterval time.Duration `yaml:"janitor_interval" envconfig:"JANITOR_INTERVAL" default:"1m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED" default:"true"`

	// RequestsPerSecond is the sustained rate allowed per client IP
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RPS" default:"5"`

	// Burst is the number of requests allowed above the sustained rate
	Burst int `yaml:"burst" envconfig:"BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are believed
	TrustedProxies []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers
	EnableCSP bool `yaml:"enable_csp" envconfig:"ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `yaml:"level" envconfig:"LEVEL" default:"info"`

	// Format is the log format: text or json
	Format string `yaml:"format" envconfig:"FORMAT" default:"text"`

	// SeqURL ships logs to a Seq server when set
	SeqURL string `yaml:"seq_url" envconfig:"SEQ_URL"`
}

// SpreadsheetConfig controls spreadsheet output.
type SpreadsheetConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED" default:"true"`
}

// DatabaseConfig holds the optional run history database settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. History is disabled when empty.
	URL string `yaml:"url" envconfig:"URL"`

	MaxConns int32 `yaml:"max_conns" envconfig:"MAX_CONNS" default:"5"`

	// HistoryRetention is how long history rows are kept
	HistoryRetention time.Duration `yaml:"history_retention" envconfig:"HISTORY_RETENTION" default:"720h"`

	// PurgeInterval is how often old history rows are deleted
	PurgeInterval time.Duration `yaml:"purge_interval" envconfig:"PURGE_INTERVAL" default:"24h"`
}

// TelemetryConfig holds tracing and metrics settings.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" default:"cleaner"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
	MetricsEnabled bool    `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HistoryEnabled reports whether a history database is configured.
func (c *DatabaseConfig) HistoryEnabled() bool {
	return c.URL != ""
}
