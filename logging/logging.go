// Package logging provides a zerolog-backed implementation of
// core.Logger for production use. The core package keeps its small
// logger interface so the scheduler has no logging dependency; this
// package is where real deployments plug in.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Swind/go-job-system/core"
)

// ZerologLogger adapts a zerolog.Logger to core.Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// New creates a logger writing human-readable console output to
// stderr at the given level (debug, info, warn, error). An unknown
// level falls back to info.
func New(level string) *ZerologLogger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return NewWithWriter(w, level)
}

// NewWithWriter creates a logger writing to w at the given level.
func NewWithWriter(w io.Writer, level string) *ZerologLogger {
	l := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{log: l}
}

// FromZerolog wraps an existing zerolog.Logger so applications can
// reuse their configured logger.
func FromZerolog(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l}
}

// ParseLevel maps a config level string to a zerolog level. Unknown
// strings map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (l *ZerologLogger) Debug(msg string, fields ...core.Field) {
	l.emit(l.log.Debug(), msg, fields)
}

// Info logs an info message.
func (l *ZerologLogger) Info(msg string, fields ...core.Field) {
	l.emit(l.log.Info(), msg, fields)
}

// Warn logs a warning message.
func (l *ZerologLogger) Warn(msg string, fields ...core.Field) {
	l.emit(l.log.Warn(), msg, fields)
}

// Error logs an error message.
func (l *ZerologLogger) Error(msg string, fields ...core.Field) {
	l.emit(l.log.Error(), msg, fields)
}

func (l *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []core.Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			ev = ev.AnErr(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
