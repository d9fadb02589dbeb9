package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/marketdb/internal/record"
)

const redacted = "[REDACTED]"

var sensitiveFields = map[string]struct{}{
	"password":       {},
	"hashedpassword": {},
	"token":          {},
	"sessiontoken":   {},
	"access_token":   {},
	"refresh_token":  {},
	"id_token":       {},
	"secret":         {},
}

// RedactingHandler replaces the values of credential-bearing attributes
// before they reach the wrapped handler. Records logged through it may carry
// whole user or account rows.
type RedactingHandler struct {
	inner slog.Handler
}

func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fallback := slog.NewRecord(record.Time, slog.LevelError, "redaction handler panic recovered", record.PC)
			fallback.AddAttrs(slog.String("panic", redacted))
			err = h.inner.Handle(ctx, fallback)
		}
	}()

	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(redactAttr(attr))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, redactAttr(attr))
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(out)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// IsSensitive reports whether values under key are redacted.
func IsSensitive(key string) bool {
	_, ok := sensitiveFields[strings.ToLower(key)]
	return ok
}

func redactAttr(attr slog.Attr) slog.Attr {
	if IsSensitive(attr.Key) {
		return slog.String(attr.Key, redacted)
	}

	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindGroup:
		group := value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, nested := range group {
			out = append(out, redactAttr(nested))
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		switch m := value.Any().(type) {
		case record.Record:
			return slog.Any(attr.Key, redactMap(m))
		case map[string]any:
			return slog.Any(attr.Key, redactMap(m))
		}
	}
	return slog.Attr{Key: attr.Key, Value: value}
}

// redactMap copies m with sensitive keys masked at any depth.
func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case IsSensitive(k):
			out[k] = redacted
		default:
			if nested, ok := v.(map[string]any); ok {
				out[k] = redactMap(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
