package logger

import (
	"log/slog"
	"time"
)

// Field is a single structured logging attribute.
type Field slog.Attr

func String(key, value string) Field { return Field(slog.String(key, value)) }

func Int(key string, value int) Field { return Field(slog.Int(key, value)) }

func Int64(key string, value int64) Field { return Field(slog.Int64(key, value)) }

func Uint64(key string, value uint64) Field { return Field(slog.Uint64(key, value)) }

func Uint(key string, value uint) Field { return Field(slog.Uint64(key, uint64(value))) }

func Bool(key string, value bool) Field { return Field(slog.Bool(key, value)) }

func Duration(key string, value time.Duration) Field { return Field(slog.Duration(key, value)) }

func Time(key string, value time.Time) Field { return Field(slog.Time(key, value)) }

func Any(key string, value any) Field { return Field(slog.Any(key, value)) }

// Error attaches err under the "error" key. A nil error is recorded as an empty string.
func Error(err error) Field {
	if err == nil {
		return Field(slog.String("error", ""))
	}
	return Field(slog.String("error", err.Error()))
}
