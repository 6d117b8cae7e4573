// Package logging builds the process slog logger from config.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is the "log" config section.
type Config struct {
	Level     string `json:"level,omitempty" yaml:"level,omitempty" env:"STORYCAST_LOG_LEVEL"`         // debug|info|warn|error
	Format    string `json:"format,omitempty" yaml:"format,omitempty" env:"STORYCAST_LOG_FORMAT"`       // text|json
	Output    string `json:"output,omitempty" yaml:"output,omitempty" env:"STORYCAST_LOG_OUTPUT"`       // stdout|stderr|file path
	AddSource bool   `json:"add_source,omitempty" yaml:"add_source,omitempty" env:"STORYCAST_LOG_SOURCE"`
}

// Logger owns the handler's writer and level so both can be managed after setup.
type Logger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// SetLevel changes the level of the live logger.
func (l *Logger) SetLevel(level string) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(lv)
	return nil
}

// Level returns the current level.
func (l *Logger) Level() slog.Level { return l.level.Level() }

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// New builds a logger writing to w (or the configured output when w is nil).
func New(cfg Config, w io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	lv := new(slog.LevelVar)
	lv.Set(level)

	var closer io.Closer
	if w == nil {
		switch cfg.Output {
		case "", "stderr":
			w = os.Stderr
		case "stdout":
			w = os.Stdout
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file: %w", err)
			}
			w, closer = f, f
		}
	}

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02T15:04:05.000Z07:00"))
			}
			return a
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	return &Logger{Logger: slog.New(handler), level: lv, closer: closer}, nil
}

// Setup builds the logger from cfg and installs it as the slog default.
func Setup(cfg Config) (*Logger, error) {
	l, err := New(cfg, nil)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l.Logger)
	return l, nil
}

// ParseLevel maps a level name to slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

type contextKey string

const loggerKey contextKey = "storycast_logger"

// WithContext stores a request-scoped logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
