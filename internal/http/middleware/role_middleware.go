package middleware

import (
	"net/http"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/http/response"
)

// RequireRoles must run after Authorize. It passes when the caller holds any
// of the allowed roles.
func RequireRoles(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || len(claims.User.Roles) == 0 {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthenticated user", nil)
				return
			}
			held := domain.RoleSet(claims.User.Roles)
			for _, role := range allowed {
				if held.Has(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "Access denied", nil)
		})
	}
}
