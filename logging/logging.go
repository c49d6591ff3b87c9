package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Fields struct {
	Service string
	OrderID string
	EventID string
	UserID  string
	Step    string
	Status  string
}

// Attrs turns the non-empty fields into slog attributes.
func (f Fields) Attrs() []any {
	var out []any
	add := func(k, v string) {
		if v != "" {
			out = append(out, slog.String(k, v))
		}
	}
	add("service", f.Service)
	add("order_id", f.OrderID)
	add("event_id", f.EventID)
	add("user_id", f.UserID)
	add("step", f.Step)
	add("status", f.Status)
	return out
}

func New(service, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, service, level)
}

func NewWithWriter(w io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(h).With(slog.String("service", service))
}

// Discard is used where a logger is required but output is not wanted.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

type ctxKey struct{}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or fallback when none was attached.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}
