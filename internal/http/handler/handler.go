package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/timber-social/timber-backend/internal/http/middleware"
	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/security"
	"github.com/timber-social/timber-backend/internal/service"
)

// decodeJSON rejects bodies that are not a single JSON object. An empty body
// decodes to the zero value so validation can report every missing field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return false
		}
		response.Error(w, r, http.StatusBadRequest, string(service.KindBadRequest), "invalid JSON body", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := service.AsError(err)
	if !ok {
		se = service.Internal("internal server error", err)
	}
	if se.Kind == service.KindInternal {
		slog.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", observability.RequestIDFromContext(r.Context()),
			"error", err.Error(),
		)
		observability.CaptureError(r.Context(), err)
	}
	var details any
	if len(se.Fields) > 0 {
		details = se.Fields
	}
	response.Error(w, r, se.Kind.Status(), string(se.Kind), se.Message, details)
}

func currentClaims(w http.ResponseWriter, r *http.Request) (*security.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, string(service.KindUnauthorized), "unauthenticated user", nil)
		return nil, false
	}
	return claims, true
}

func currentUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	claims, ok := currentClaims(w, r)
	if !ok {
		return 0, false
	}
	id, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, string(service.KindUnauthorized), "invalid subject", nil)
		return 0, false
	}
	return id, true
}
