// Package logging is a small structured logger backed by log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// Convenience helpers for common field types.
func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Strings(key string, vs []string) Field { return Field{Key: key, Value: vs} }
func Err(err error) Field                   { return Field{Key: "error", Value: errString(err)} }
func Component(name string) Field           { return Field{Key: "component", Value: name} }

// Logger is the logging interface used across the dashboard.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls basic logger behaviour.
type Config struct {
	Level     string    // debug, info, warn, error
	Format    string    // json or text
	AddSource bool      // include source locations
	Output    io.Writer // defaults to stdout
}

// New constructs a Logger backed by slog with the provided config.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return &slogger{l: slog.New(handler)}
}

// Noop returns a logger that drops all logs.
func Noop() Logger { return noopLogger{} }

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	return &slogger{l: s.l.With(toArgs(fields...)...)}
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelDebug, msg, toAttrs(fields...)...)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelInfo, msg, toAttrs(fields...)...)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelWarn, msg, toAttrs(fields...)...)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelError, msg, toAttrs(fields...)...)
}

type noopLogger struct{}

func (noopLogger) With(fields ...Field) Logger             { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

func toAttrs(fields ...Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toArgs(fields ...Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
