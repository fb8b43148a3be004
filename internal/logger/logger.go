// Package logger provides the structured logging interface used across healthmon.
//
// Components receive a Logger through their constructors and derive a module
// scoped child with Module. The default implementation writes through log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// moduleKey is the attribute key carrying the module name.
const moduleKey = "module"

// Logger is the logging interface passed to every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that always includes fields.
	With(fields ...Field) Logger
	// Module returns a child logger tagged with the given module name.
	Module(name string) Logger
}

// Options tunes the slog backed logger.
type Options struct {
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
	// AddSource records the caller file and line.
	AddSource bool
}

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing to w at the given level.
// A nil opts uses the text handler without source locations.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(string(level)),
		AddSource: opts.AddSource,
	}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return &SlogLogger{l: slog.New(h)}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

// With returns a child logger with fields attached.
func (s *SlogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Attr(f)
	}
	return &SlogLogger{l: s.l.With(args...)}
}

// Module returns a child logger tagged with name.
func (s *SlogLogger) Module(name string) Logger {
	return &SlogLogger{l: s.l.With(slog.String(moduleKey, name))}
}

func (s *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Attr(f)
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}
