package observability

import (
	"context"
	"log/slog"
)

// Audit records a security relevant transition. Never pass secrets or codes as attrs.
func Audit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []any{"event", event}
	if id := RequestIDFromContext(ctx); id != "" {
		base = append(base, "request_id", id)
	}
	base = append(base, attrs...)
	logger.InfoContext(ctx, "audit", base...)
}

type requestIDKey struct{}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
