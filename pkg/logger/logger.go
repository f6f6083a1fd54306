// Package logger wraps log/slog with the service attributes, level control
// and trace correlation shared by every binary.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logger handed to every component
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
	SetLevel(level string)
}

// Config holds logger configuration
type Config struct {
	Level      string            `json:"level" yaml:"level"`
	Format     string            `json:"format" yaml:"format"`
	Output     string            `json:"output" yaml:"output"`
	AddSource  bool              `json:"add_source" yaml:"add_source"`
	TimeFormat string            `json:"time_format" yaml:"time_format"`
	Fields     map[string]string `json:"fields" yaml:"fields"`
}

// DefaultConfig logs JSON at info level to stdout
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		Fields:     map[string]string{},
	}
}

// entry embeds *slog.Logger for the level methods and keeps the shared
// LevelVar so SetLevel affects every derived logger.
type entry struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a logger with the default configuration
func New(service string) Logger {
	return NewWithConfig(service, DefaultConfig())
}

// NewWithConfig resolves config.Output to a writer. An output file that
// cannot be opened falls back to stdout.
func NewWithConfig(service string, config *Config) Logger {
	return NewWithWriter(service, config, openOutput(config.Output))
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout
	}
	return f
}

// NewWithWriter builds a logger writing to w
func NewWithWriter(service string, config *Config, w io.Writer) Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(config.Level))

	layout := config.TimeFormat
	if layout == "" {
		layout = time.RFC3339
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
				return slog.String(a.Key, t.Format(layout))
			}
			return a
		},
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(config.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	base := slog.New(h).With("service", service)
	for k, v := range config.Fields {
		base = base.With(k, v)
	}
	return &entry{Logger: base, level: level}
}

// NewNop discards everything
func NewNop() Logger {
	return NewWithWriter("nop", &Config{Level: "error"}, io.Discard)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Fatal logs at error level and exits
func (e *entry) Fatal(msg string, args ...any) {
	e.Logger.Error(msg, args...)
	os.Exit(1)
}

func (e *entry) With(args ...any) Logger {
	return &entry{Logger: e.Logger.With(args...), level: e.level}
}

// WithContext adds the trace and span IDs of the span in ctx. Without a
// valid span the receiver is returned unchanged.
func (e *entry) WithContext(ctx context.Context) Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return e
	}
	return e.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

func (e *entry) SetLevel(level string) {
	e.level.Set(parseLevel(level))
}

var global Logger = New("default")

// SetGlobal replaces the process-wide logger
func SetGlobal(l Logger) {
	global = l
}

// Global returns the process-wide logger
func Global() Logger {
	return global
}
