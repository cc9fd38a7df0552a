package handler

import (
	"net/http"
	"strings"
	"time"

	"go-auth-session/internal/credential"
	"go-auth-session/internal/device"
	"go-auth-session/internal/middleware"
	"go-auth-session/internal/model"
	"go-auth-session/internal/service"
	"go-auth-session/pkg/apierror"
)

// CookieOptions controls the HttpOnly access-token cookie set on login and refresh.
type CookieOptions struct {
	Secure bool
}

type AuthHandler struct {
	service *service.AuthService
	cookies CookieOptions
}

func NewAuthHandler(service *service.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{service: service, cookies: cookies}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("email and password are required", ""))
		return
	}

	result, err := h.service.Login(r.Context(), payload.Email, payload.Password, device.Parse(r.UserAgent()), middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.AccessToken, result.ExpiresIn)
	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.RefreshToken = strings.TrimSpace(payload.RefreshToken)
	if payload.RefreshToken == "" {
		writeError(w, apierror.BadRequest("refreshToken is required", "refreshToken"))
		return
	}

	result, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.AccessToken, result.ExpiresIn)
	writeSuccess(w, http.StatusOK, result, nil)
}

// Logout accepts the access token from any carrier the guard understands.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), credential.FromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	h.clearTokenCookie(w)
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apierror.TokenRequired())
		return
	}

	user, err := h.service.Me(r.Context(), auth.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.MeResponse{User: user, Session: auth.Session.View()}, nil)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string, expiresIn int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     credential.CookieNames[0],
		Value:    token,
		Path:     "/",
		MaxAge:   int(expiresIn),
		Expires:  time.Now().Add(time.Duration(expiresIn) * time.Second),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     credential.CookieNames[0],
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
