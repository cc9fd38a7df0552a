package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-auth-session/internal/model"
	"go-auth-session/internal/service"
)

// AdminHandler serves the operator endpoints mounted under /api/v1/admin.
type AdminHandler struct {
	auth  *service.AuthService
	audit *service.AuditService
}

func NewAdminHandler(auth *service.AuthService, audit *service.AuditService) *AdminHandler {
	return &AdminHandler{auth: auth, audit: audit}
}

func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	items, meta, err := h.audit.Query(r.Context(), model.AuditQuery{
		Type:      strings.TrimSpace(query.Get("type")),
		ActorID:   strings.TrimSpace(query.Get("actor_id")),
		SessionID: strings.TrimSpace(query.Get("session_id")),
		From:      strings.TrimSpace(query.Get("from")),
		To:        strings.TrimSpace(query.Get("to")),
		Page:      parseIntOrDefault(query.Get("page"), 1),
		Limit:     parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}

func (h *AdminHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	err := h.auth.RevokeSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "session revoked")
}
