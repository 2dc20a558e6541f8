// Package logging defines the leveled, flushable logger the memory-swapping
// layer writes to. Components hold a Logger without owning it; the embedding
// runtime decides where records go and when buffered output is flushed.
package logging

import (
	"bufio"
	"io"
	"log/slog"
	"sync"
)

// Logger is the minimal leveled logger with an explicit flush.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// Flush forces buffered records out to the underlying writer.
	Flush() error
}

// SlogAdapter wraps *slog.Logger to implement Logger. Flush is a no-op
// because slog handlers write through.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlog creates a Logger from *slog.Logger.
func NewSlog(l *slog.Logger) Logger {
	return &SlogAdapter{Logger: l}
}

// Flush implements Logger.
func (s *SlogAdapter) Flush() error { return nil }

// BufferedLogger is an slog-backed Logger that buffers output until Flush.
type BufferedLogger struct {
	*slog.Logger
	mu  *sync.Mutex
	buf *bufio.Writer
}

// NewBuffered creates a Logger that writes slog records to a buffer in front
// of w. format "text" selects the text handler, anything else JSON.
func NewBuffered(w io.Writer, level slog.Level, format string) *BufferedLogger {
	mu := &sync.Mutex{}
	buf := bufio.NewWriter(w)
	lw := &lockedWriter{mu: mu, w: buf}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(lw, opts)
	} else {
		h = slog.NewJSONHandler(lw, opts)
	}
	return &BufferedLogger{Logger: slog.New(h), mu: mu, buf: buf}
}

// Flush implements Logger.
func (b *BufferedLogger) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Flush()
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
func (discard) Flush() error         { return nil }

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return discard{}
}

// OrDiscard returns l, or a discarding Logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return discard{}
	}
	return l
}
