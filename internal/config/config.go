package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	defaultLogFormat = "json"

	envLogLevel     = "MORI_LOG_LEVEL"
	envLogFormat    = "MORI_LOG_FORMAT"
	envMetricsAddr  = "MORI_METRICS_ADDR"
	envSettingsFile = "MORI_SETTINGS_FILE"
	envBackendPath  = "MORI_BACKEND_PATH"
)

// Config holds process configuration loaded from environment variables.
type Config struct {
	LogLevel  slog.Level
	LogFormat string
	// MetricsAddr is the listen address of the debug HTTP server. Empty disables it.
	MetricsAddr string
	// SettingsFile is an optional YAML file of settings overrides.
	SettingsFile string
	// BackendPath overrides the "path" setting when non-empty.
	BackendPath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		LogLevel:  slog.LevelInfo,
		LogFormat: defaultLogFormat,
	}

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv(envMetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv(envSettingsFile); v != "" {
		cfg.SettingsFile = v
	}
	if v := os.Getenv(envBackendPath); v != "" {
		cfg.BackendPath = v
	}

	return cfg
}

// Settings builds the settings store for cfg: defaults, then the settings
// file if one is configured, then the backend path override.
func (cfg Config) Settings() (*Settings, error) {
	s := NewSettings()
	if cfg.SettingsFile != "" {
		if err := s.LoadFile(cfg.SettingsFile); err != nil {
			return nil, err
		}
	}
	if cfg.BackendPath != "" {
		s.Set(KeyPath, cfg.BackendPath)
	}
	return s, nil
}

// ParseLogLevel maps a level name to a slog level. Unknown names map to info.
func ParseLogLevel(s string) slog.Level {
	return parseLogLevel(s)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to w at the configured level.
// format "text" selects the text handler, anything else JSON.
func NewLogger(w io.Writer, level slog.Level, format ...string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if len(format) > 0 && format[0] == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
