package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter implements Logger on top of a logrus logger, for embedding
// runtimes that already configure logrus.
type LogrusAdapter struct {
	log *logrus.Logger
}

// NewLogrus creates a Logger from *logrus.Logger.
func NewLogrus(l *logrus.Logger) Logger {
	return &LogrusAdapter{log: l}
}

func (l *LogrusAdapter) entry(args []any) *logrus.Entry {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields[fmt.Sprint(args[i])] = args[i+1]
	}
	if len(args)%2 == 1 {
		fields["!BADKEY"] = args[len(args)-1]
	}
	return l.log.WithFields(fields)
}

// Debug logs a debug message.
func (l *LogrusAdapter) Debug(msg string, args ...any) { l.entry(args).Debug(msg) }

// Info logs an informational message.
func (l *LogrusAdapter) Info(msg string, args ...any) { l.entry(args).Info(msg) }

// Warn logs a warning message.
func (l *LogrusAdapter) Warn(msg string, args ...any) { l.entry(args).Warn(msg) }

// Error logs an error message.
func (l *LogrusAdapter) Error(msg string, args ...any) { l.entry(args).Error(msg) }

// Flush syncs the logrus output when it supports syncing (for example *os.File).
func (l *LogrusAdapter) Flush() error {
	if s, ok := l.log.Out.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}
