package logger

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Options configures a logger created by New.
type Options struct {
	Service   string
	Env       string
	Level     string
	Format    string    // "json" or "text"
	Output    io.Writer // defaults to os.Stdout
	AddSource bool
}

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	base  *slog.Logger
	level *slog.LevelVar
}

// New creates a structured logger. The service and env values are attached to
// every record when set.
func New(opts Options) *SlogLogger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opts.AddSource,
	}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}

	base := slog.New(h)
	if opts.Service != "" {
		base = base.With("service", opts.Service)
	}
	if opts.Env != "" {
		base = base.With("env", opts.Env)
	}

	return &SlogLogger{base: base, level: level}
}

func (l *SlogLogger) Debug(msg string, fields map[string]interface{}) {
	l.base.Debug(msg, toArgs(fields)...)
}

func (l *SlogLogger) Info(msg string, fields map[string]interface{}) {
	l.base.Info(msg, toArgs(fields)...)
}

func (l *SlogLogger) Warn(msg string, fields map[string]interface{}) {
	l.base.Warn(msg, toArgs(fields)...)
}

func (l *SlogLogger) Error(msg string, fields map[string]interface{}) {
	l.base.Error(msg, toArgs(fields)...)
}

// SetLevel changes the minimum level. Child loggers share the level.
func (l *SlogLogger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

func (l *SlogLogger) WithField(key string, value interface{}) Logger {
	return &SlogLogger{base: l.base.With(key, value), level: l.level}
}

func (l *SlogLogger) WithFields(fields map[string]interface{}) Logger {
	return &SlogLogger{base: l.base.With(toArgs(fields)...), level: l.level}
}

// WithComponent tags every record with a component name, e.g. "cart/client".
func (l *SlogLogger) WithComponent(component string) Logger {
	return l.WithField("component", component)
}

// toArgs flattens fields into slog key/value args in key order so output is stable.
func toArgs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields))
	for _, k := range keys {
		v := fields[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		args = append(args, slog.Any(k, v))
	}
	return args
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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
