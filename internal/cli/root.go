// Package cli implements the mori command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose      bool
	SettingsFile string
	Set          []string
	LogDriver    string // "slog" | "logrus"
}

// ValidLogDrivers defines the allowed logger implementations.
var ValidLogDrivers = []string{"slog", "logrus"}

// NewRootCommand creates the root command for the mori CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mori",
		Short: "mori - tensor memory swapping",
		Long:  "Drive the mori memory swapping layer: resolve a backend, run a training iteration, inspect settings.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogDriver(opts.LogDriver) {
				return fmt.Errorf("invalid log driver %q: must be one of %v", opts.LogDriver, ValidLogDrivers)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.SettingsFile, "settings", "", "YAML file of settings overrides")
	cmd.PersistentFlags().StringArrayVar(&opts.Set, "set", nil, "override a setting (key=value, repeatable)")
	cmd.PersistentFlags().StringVar(&opts.LogDriver, "log-driver", "slog", "logger implementation (slog|logrus)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSettingsCommand(opts))
	cmd.AddCommand(NewBackendsCommand(opts))

	return cmd
}

func isValidLogDriver(driver string) bool {
	for _, d := range ValidLogDrivers {
		if d == driver {
			return true
		}
	}
	return false
}

// loadSettings resolves settings from the environment, the settings file
// and --set flags, in increasing precedence.
func loadSettings(opts *RootOptions, cfg config.Config) (*config.Settings, error) {
	if opts.SettingsFile != "" {
		cfg.SettingsFile = opts.SettingsFile
	}
	s, err := cfg.Settings()
	if err != nil {
		return nil, err
	}
	for _, kv := range opts.Set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		s.Set(key, value)
	}
	return s, nil
}

func (opts *RootOptions) level(cfg config.Config) slog.Level {
	if opts.Verbose {
		return slog.LevelDebug
	}
	return cfg.LogLevel
}

// newLogger builds the swapping layer's logger writing to w.
func (opts *RootOptions) newLogger(w io.Writer, cfg config.Config) logging.Logger {
	level := opts.level(cfg)
	if opts.LogDriver == "logrus" {
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(logrusLevel(level))
		if cfg.LogFormat == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logging.NewLogrus(l)
	}
	return logging.NewBuffered(w, level, cfg.LogFormat)
}

func logrusLevel(level slog.Level) logrus.Level {
	switch {
	case level <= slog.LevelDebug:
		return logrus.DebugLevel
	case level <= slog.LevelInfo:
		return logrus.InfoLevel
	case level <= slog.LevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
