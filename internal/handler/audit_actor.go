package handler

import (
	"net/http"

	"go-auth-session/internal/middleware"
)

// actorID names the authenticated operator for audit events, or "" on unguarded routes.
func actorID(r *http.Request) string {
	auth, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return ""
	}
	return auth.User.ID
}
