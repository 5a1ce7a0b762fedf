package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// FileEnv names the environment variable holding the optional YAML config path.
const FileEnv = "CONFIG_FILE"

// Load reads configuration from a .env file (if present), environment
// variables and the YAML file named by CONFIG_FILE. It applies defaults for
// unset values and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config load: .env: %w", err)
	}
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load without the .env step. An empty path skips the YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		overlay(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(file).Elem(), "")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	file := &Config{}
	if err := yaml.UnmarshalStrict(data, file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}

// overlay copies every non-zero leaf of file into dst unless the matching
// environment variable is set. Keys are built from the envconfig tags the
// same way envconfig.Process builds them.
func overlay(dst, file reflect.Value, prefix string) {
	t := dst.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		dstVal := dst.Field(i)
		fileVal := file.Field(i)

		if !dstVal.CanSet() {
			continue
		}

		name := field.Tag.Get("envconfig")
		if name == "" {
			name = strings.ToUpper(field.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "_" + name
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			overlay(dstVal, fileVal, key)
			continue
		}

		if envSet(key, name) {
			continue
		}
		if fileVal.IsZero() {
			continue
		}
		dstVal.Set(fileVal)
	}
}

// envSet reports whether envconfig would have read a value for the field.
// envconfig falls back to the bare tag name when the prefixed key is unset.
func envSet(keys ...string) bool {
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			return true
		}
	}
	return false
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxFiles <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILES must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWait <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT must be positive")
	}
	if c.Upload.Workers <= 0 {
		errs = append(errs, "UPLOAD_WORKERS must be positive")
	}
	if c.Upload.PreviewRows <= 0 {
		errs = append(errs, "UPLOAD_PREVIEW_ROWS must be positive")
	}
	if c.Upload.ArtifactTTL <= 0 {
		errs = append(errs, "UPLOAD_ARTIFACT_TTL must be positive")
	}
	if c.Upload.JanitorInterval <= 0 {
		errs = append(errs, "UPLOAD_JANITOR_INTERVAL must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerSecond <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	// Database validation, only when history is on
	if c.Database.HistoryEnabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DATABASE_MAX_CONNS must be positive")
		}
		if c.Database.HistoryRetention <= 0 {
			errs = append(errs, "DATABASE_HISTORY_RETENTION must be positive")
		}
		if c.Database.PurgeInterval <= 0 {
			errs = append(errs, "DATABASE_PURGE_INTERVAL must be positive")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Telemetry validation
	validExporters := map[string]bool{"none": true, "stdout": true}
	if !validExporters[strings.ToLower(c.Telemetry.TraceExporter)] {
		errs = append(errs, fmt.Sprintf("TELEMETRY_TRACE_EXPORTER (%q) must be one of: none, stdout", c.Telemetry.TraceExporter))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "TELEMETRY_SAMPLE_RATIO must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	dbURL := "[EMPTY]"
	if c.Database.URL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxFiles: %d, MaxConcurrent: %d, Workers: %d}, ",
		c.Upload.MaxFileSize, c.Upload.MaxFiles, c.Upload.MaxConcurrent, c.Upload.Workers)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RPS: %g, Burst: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerSecond, c.Rate.Burst)
	fmt.Fprintf(&b, "Spreadsheet: {Enabled: %v}, ", c.Spreadsheet.Enabled)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", dbURL, c.Database.MaxConns)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
