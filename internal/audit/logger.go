// Package audit records signing activity as an append-only JSON event trail.
package audit

import (
	"context"
	"io"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger 审计日志接口
type Logger interface {
	LogEvent(ctx context.Context, event *Event) error
}

// logger writes one JSON line per event.
type logger struct {
	clock time2.Clock
	out   zerolog.Logger
}

// Config controls the audit trail file and its rotation.
type Config struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// NewLogger creates an audit logger appending to a size-rotated file.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewLogger(cfg Config, clock time2.Clock) (Logger, error) {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return NewWriterLogger(w, clock), nil
}

// NewWriterLogger creates an audit logger over an arbitrary writer.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewWriterLogger(w io.Writer, clock time2.Clock) Logger {
	return &logger{
		clock: clock,
		out:   zerolog.New(w),
	}
}

// LogEvent 记录审计事件
func (l *logger) LogEvent(_ context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now()
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	l.out.Log().
		Str("event_id", event.EventID).
		Time("timestamp", event.Timestamp).
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID).
		Str("keygrip", event.Keygrip).
		Str("command", event.Command).
		Str("result", event.Result).
		Str("details", event.Details).
		Send()

	return nil
}

// nop discards all events. Used where auditing is disabled.
type nop struct{}

// NewNopLogger returns a logger that discards all events.
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewNopLogger() Logger {
	return nop{}
}

func (nop) LogEvent(_ context.Context, _ *Event) error {
	return nil
}
