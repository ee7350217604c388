package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

func NewLogger(service, level string) *Logger {
	return newLogger(os.Stdout, service, level)
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return newLogger(io.Discard, "discard", "error")
}

func newLogger(w io.Writer, service, level string) *Logger {
	hostname, _ := os.Hostname()

	handler := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))

	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  handler,
	}
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

func (l *Logger) Debug(action, message string, attrs ...slog.Attr) {
	l.log(slog.LevelDebug, action, message, attrs)
}

func (l *Logger) Info(action, message string, attrs ...slog.Attr) {
	l.log(slog.LevelInfo, action, message, attrs)
}

func (l *Logger) Warn(action, message string, attrs ...slog.Attr) {
	l.log(slog.LevelWarn, action, message, attrs)
}

func (l *Logger) Error(action, message string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.Group("error", slog.String("msg", err.Error())))
	}
	l.log(slog.LevelError, action, message, attrs)
}

func (l *Logger) log(level slog.Level, action, message string, attrs []slog.Attr) {
	base := []slog.Attr{
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
	}
	l.handler.LogAttrs(context.Background(), level, message, append(base, attrs...)...)
}
