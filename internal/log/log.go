// Package log is the service's structured logger: one JSON document per
// line on stdout, enriched with the request trace id when one is bound.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

// DefaultTimeFormat renders timestamps like "2024-05-01 13:04:05,123".
const DefaultTimeFormat = "2006-01-02 15:04:05,000"

// DefaultName is the logger identifier written to the "name" field.
const DefaultName = "sampleform"

type Options struct {
	// Name is emitted on every record as "name".
	Name  string
	Level slog.Level
	// TimeFormat is a Go time layout for the "timestamp" field.
	TimeFormat string
	// AddSource adds the caller file:line under "source".
	AddSource bool
	Writer    io.Writer
}

func New(opts Options) (Logger, error) { return newSlog(opts) }

// Setup guards logger construction so configuring twice never attaches a
// second output handler. The zero value is ready to use.
type Setup struct {
	mu  sync.Mutex
	l   Logger
	err error
}

// Configure builds the logger on the first call and returns that same logger
// (and error) on every later call; later options are ignored.
func (s *Setup) Configure(opts Options) (Logger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l == nil && s.err == nil {
		s.l, s.err = New(opts)
	}
	return s.l, s.err
}

func ParseLevel(s string) (slog.Level, error) {
	x := strings.ToLower(strings.TrimSpace(s))
	switch x {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %s (valid levels are debug|info|warn|error)", s)
	}
}
