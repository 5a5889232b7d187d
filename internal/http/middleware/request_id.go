package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/timber-social/timber-backend/internal/observability"
)

const requestIDHeader = "X-Request-Id"

const maxInboundRequestIDLength = 128

// RequestID reuses a sane inbound X-Request-Id or mints a UUID, and exposes it
// to chi, the logger and the response envelope.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > maxInboundRequestIDLength || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, id)
		ctx = observability.ContextWithRequestID(ctx, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
