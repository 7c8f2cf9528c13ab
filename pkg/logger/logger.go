// Package logger builds slog loggers configured from the environment.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging settings, populated from the environment.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json or text
}

// Option configures the logger factory.
type Option func(*options)

type options struct {
	writer io.Writer
	attrs  []slog.Attr
}

// WithWriter overrides the output destination. Defaults to stdout.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.writer = w
		}
	}
}

// WithComponent tags every record with a component attribute, so logs from
// the billing service, trial runner and migrations are distinguishable.
func WithComponent(name string) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, slog.String("component", name))
	}
}

// New builds a slog.Logger from config.
func New(cfg Config, opts ...Option) *slog.Logger {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(o.writer, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(o.writer, handlerOpts)
	}

	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
