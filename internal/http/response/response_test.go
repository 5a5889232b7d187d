package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rr := httptest.NewRecorder()

	Error(rr, req, http.StatusConflict, "CONFLICT", "This username is already taken", map[string]string{"username": "taken"})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
		Meta struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "CONFLICT" || body.Error.Details["username"] != "taken" || body.Meta.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
}

func TestPageEnvelopeCarriesPagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	Page(rr, req, []string{"a"}, Pagination{Page: 2, Limit: 10, Total: 11, TotalPages: 2})

	var body struct {
		Meta struct {
			RequestID  string     `json:"request_id"`
			Pagination Pagination `json:"pagination"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Meta.Pagination.TotalPages != 2 || body.Meta.RequestID != "req-unknown" {
		t.Fatalf("unexpected meta: %s", rr.Body.String())
	}
}
