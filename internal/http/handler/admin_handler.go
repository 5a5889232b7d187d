package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/service"
)

type AdminHandler struct {
	admin service.AdminServiceInterface
}

func NewAdminHandler(admin service.AdminServiceInterface) *AdminHandler {
	return &AdminHandler{admin: admin}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	res, err := h.admin.ListAccounts(r.Context(), service.AdminListQuery{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Page(w, r, res.Items, response.Pagination{
		Page:       res.Page,
		Limit:      res.PageSize,
		Total:      res.Total,
		TotalPages: res.TotalPages,
	})
}

func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "User suspended", h.admin.Suspend)
}

func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "User reactivated", h.admin.Reactivate)
}

func (h *AdminHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	msg string,
	op func(ctx context.Context, actorID, targetID uint) (*domain.AccountView, error),
) {
	actorID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := op(r.Context(), actorID, targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, r, http.StatusOK, msg, view)
}

// queryInt treats a missing parameter as zero so the service applies its default.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, service.ValidationFailed(map[string]string{name: "Must be an integer"}))
		return 0, false
	}
	return v, true
}
