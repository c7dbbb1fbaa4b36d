package log

import (
	"context"
	stdlog "log"
	"log/slog"
	"strings"
)

// StdLogger adapts l for APIs that only accept a *log.Logger, such as
// http.Server.ErrorLog, so those messages come out as structured records
// instead of a second, unstructured stream.
func StdLogger(l Logger, lvl slog.Level) *stdlog.Logger {
	if l == nil {
		l = Nop()
	}
	return stdlog.New(stdWriter{l: l, lvl: lvl}, "", 0)
}

type stdWriter struct {
	l   Logger
	lvl slog.Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}
	ctx := context.Background()
	switch {
	case w.lvl >= slog.LevelError:
		w.l.Error(ctx, nil, msg, "origin", "stdlib")
	case w.lvl >= slog.LevelWarn:
		w.l.Warn(ctx, msg, "origin", "stdlib")
	case w.lvl >= slog.LevelInfo:
		w.l.Info(ctx, msg, "origin", "stdlib")
	default:
		w.l.Debug(ctx, msg, "origin", "stdlib")
	}
	return len(p), nil
}
