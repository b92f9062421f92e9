package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetenv removes a variable for the duration of the test. Numeric fields
// cannot be cleared with t.Setenv("", ...) because envconfig fails to parse
// an explicitly empty value.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "x")
	_ = os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "PORT")
	unsetenv(t, "NOTIFIER_RETENTION_DAYS")
	unsetenv(t, "NOTIFIER_PURGE_INTERVAL")
	unsetenv(t, "LOG_LEVEL")
	t.Setenv("NOTIFIER_DATA_DIR", "/tmp/notifier-test")
	t.Setenv("NOTIFIER_SMTP_HOST", "")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8990, c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 90, c.RetentionDays)
	assert.False(t, c.SMTPEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("NOTIFIER_DATA_DIR", "/var/lib/notifier")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NOTIFIER_RETENTION_DAYS", "30")
	t.Setenv("NOTIFIER_SMTP_HOST", "smtp.example.gov.my")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, c.Port)
	assert.Equal(t, "/var/lib/notifier", c.DataDir)
	assert.Equal(t, 30, c.RetentionDays)
	assert.True(t, c.SMTPEnabled())
}

func TestDerivedPaths(t *testing.T) {
	c := &AppConfig{DataDir: "/data"}

	assert.Equal(t, filepath.Join("/data", "logs"), c.LogDir())
	assert.Equal(t, filepath.Join("/data", "notifier.db"), c.DBPath())
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			c := &AppConfig{LogLevel: tt.level}
			assert.Equal(t, tt.want, c.SlogLevel())
		})
	}
}
