package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// Authorize rejects requests without a valid access token and attaches the
// verified claims otherwise.
func Authorize(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := extractAccessToken(r)
			if raw == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "access token not found in header or cookies", nil)
				return
			}
			claims, ok := jwtMgr.VerifyAccessToken(raw)
			if !ok {
				observability.RecordAccessTokenValidation(r.Context(), "invalid", source)
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired Access Token", nil)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", source)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuthorize attaches claims when a valid token is present and lets
// every request through.
func OptionalAuthorize(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := extractAccessToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := jwtMgr.VerifyAccessToken(raw)
			if !ok {
				observability.RecordAccessTokenValidation(r.Context(), "ignored", source)
				next.ServeHTTP(w, r)
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid", source)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok && c != nil
}

// extractAccessToken prefers the Authorization header over the cookie.
func extractAccessToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		if raw := strings.TrimSpace(auth[7:]); raw != "" {
			return raw, "bearer"
		}
	}
	if raw := security.GetCookie(r, security.AccessTokenCookie); raw != "" {
		return raw, "cookie"
	}
	return "", ""
}
