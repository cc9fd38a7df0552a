package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-session/internal/model"
	"go-auth-session/internal/service"
	"go-auth-session/pkg/apierror"
)

type UserHandler struct {
	service *service.UserService
}

func NewUserHandler(service *service.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuthUserList{Users: users}, nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, apierror.BadRequest("user id is required", "id"))
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, apierror.BadRequest("user id is required", "id"))
		return
	}

	var payload model.UpdateUserStatusRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.SetStatus(r.Context(), userID, payload.Status, actorID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}
