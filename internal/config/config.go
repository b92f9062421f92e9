// Package config loads application-level configuration from environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8990.
	Port int `envconfig:"PORT" default:"8990"`

	// DataDir is the root data directory. Defaults to ~/.portal-notifier.
	DataDir string `envconfig:"NOTIFIER_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// RetentionDays is how long audit entries are kept before the scheduled
	// purge removes them. Zero disables the scheduled purge.
	RetentionDays int `envconfig:"NOTIFIER_RETENTION_DAYS" default:"90"`

	// PurgeInterval is how often the retention job runs.
	PurgeInterval time.Duration `envconfig:"NOTIFIER_PURGE_INTERVAL" default:"24h"`

	// SMTP settings enable the primary channel sink when SMTPHost is set.
	// The standard deployment leaves them empty and relies on the fallback
	// path.
	SMTPHost       string `envconfig:"NOTIFIER_SMTP_HOST"`
	SMTPPort       int    `envconfig:"NOTIFIER_SMTP_PORT" default:"587"`
	SMTPUsername   string `envconfig:"NOTIFIER_SMTP_USERNAME"`
	SMTPPassword   string `envconfig:"NOTIFIER_SMTP_PASSWORD"`
	SMTPFromAddr   string `envconfig:"NOTIFIER_SMTP_FROM"`
	SMTPEncryption string `envconfig:"NOTIFIER_SMTP_ENCRYPTION" default:"starttls"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.portal-notifier if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".portal-notifier")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory.
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite key-value store.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "notifier.db")
}

// SMTPEnabled reports whether the primary SMTP channel should be composed.
func (c *AppConfig) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
