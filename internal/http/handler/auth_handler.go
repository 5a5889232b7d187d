package handler

import (
	"net/http"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/http/response"
	"github.com/timber-social/timber-backend/internal/security"
	"github.com/timber-social/timber-backend/internal/service"
)

type AuthHandler struct {
	auth    service.AuthServiceInterface
	cookies security.CookieOptions
}

func NewAuthHandler(auth service.AuthServiceInterface, cookies security.CookieOptions) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies}
}

type loginResponse struct {
	User             domain.AccountView `json:"user"`
	AccessToken      string             `json:"access_token"`
	RefreshToken     string             `json:"refresh_token"`
	AccessExpiresAt  time.Time          `json:"access_expires_at"`
	RefreshExpiresAt time.Time          `json:"refresh_expires_at"`
}

type refreshResponse struct {
	User            domain.AccountView `json:"user"`
	AccessToken     string             `json:"access_token"`
	AccessExpiresAt time.Time          `json:"access_expires_at"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	response.Message(w, r, status, res.Message, res.Account)
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var in service.CodeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	view, err := h.auth.VerifyUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, r, http.StatusOK, "User verified successfully", view)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var in service.EmailInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.message(w, r, func() (string, error) { return h.auth.ResendVerificationCode(r.Context(), in) })
}

func (h *AuthHandler) CheckVerificationCode(w http.ResponseWriter, r *http.Request) {
	var in service.CodeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.message(w, r, func() (string, error) { return h.auth.CheckVerificationCode(r.Context(), in) })
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in service.EmailInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.message(w, r, func() (string, error) { return h.auth.ForgotPassword(r.Context(), in) })
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetPasswordInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.message(w, r, func() (string, error) { return h.auth.ResetPassword(r.Context(), in) })
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := h.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	security.SetAuthCookies(w, h.cookies, res.Tokens.AccessToken, res.Tokens.RefreshToken)
	response.Message(w, r, http.StatusOK, "Login successful", loginResponse{
		User:             res.Account,
		AccessToken:      res.Tokens.AccessToken,
		RefreshToken:     res.Tokens.RefreshToken,
		AccessExpiresAt:  res.Tokens.AccessExpiresAt,
		RefreshExpiresAt: res.Tokens.RefreshExpiresAt,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	res, err := h.auth.RefreshAccessToken(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	security.SetAccessCookie(w, h.cookies, res.AccessToken)
	response.Message(w, r, http.StatusOK, "Access token refreshed", refreshResponse{
		User:            res.Account,
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.refreshToken(w, r)
	if !ok {
		return
	}
	msg, err := h.auth.Logout(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	security.ClearAuthCookies(w, h.cookies)
	response.Message(w, r, http.StatusOK, msg, nil)
}

func (h *AuthHandler) message(w http.ResponseWriter, r *http.Request, call func() (string, error)) {
	msg, err := call()
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Message(w, r, http.StatusOK, msg, nil)
}

// refreshToken prefers the cookie and falls back to a JSON body field.
func (h *AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if raw := security.GetCookie(r, security.RefreshTokenCookie); raw != "" {
		return raw, true
	}
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return "", false
	}
	return body.RefreshToken, true
}
