package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/http/middleware"
	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/repository"
	"github.com/timber-social/timber-backend/internal/service"
)

type UserHandler struct {
	profiles service.ProfileServiceInterface
	follows  service.FollowServiceInterface
}

func NewUserHandler(profiles service.ProfileServiceInterface, follows service.FollowServiceInterface) *UserHandler {
	return &UserHandler{profiles: profiles, follows: follows}
}

// Me echoes the identity carried by the access token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, claims.User)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var viewerID uint
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		viewerID, _ = claims.UserID()
	}
	profile, err := h.profiles.PublicProfile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var in service.ProfileUpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, r, http.StatusOK, "Profile updated successfully", profile)
}

func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	h.edge(w, r, h.follows.Follow)
}

func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.edge(w, r, h.follows.Unfollow)
}

func (h *UserHandler) edge(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, followerID, targetID uint) (string, error)) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r)
	if !ok {
		return
	}
	msg, err := op(r.Context(), userID, targetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, r, http.StatusOK, msg, nil)
}

func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.follows.Followers)
}

func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.follows.Following)
}

func (h *UserHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context, userID uint, page, limit int) (repository.PageResult[domain.AccountSummary], error),
) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	res, err := fetch(r.Context(), userID, page, limit)
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

// pathID parses the {id} route parameter as a positive account id.
func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, r, service.ValidationFailed(map[string]string{"id": "Invalid user id"}))
		return 0, false
	}
	return uint(id), true
}
