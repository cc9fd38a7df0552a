package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-auth-session/internal/config"
	"go-auth-session/internal/handler"
	"go-auth-session/internal/middleware"
	"go-auth-session/internal/model"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	userHandler *handler.UserHandler,
	healthHandler *handler.HealthHandler,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth, authMiddleware.RequireRoles("admin"))

			admin.With(authMiddleware.RequirePermissions(model.PermissionSessionsRead)).Get("/audit", adminHandler.ListAudit)
			admin.With(authMiddleware.RequirePermissions(model.PermissionSessionsRevoke)).
				Delete("/users/{userID}/sessions/{sessionID}", adminHandler.RevokeSession)

			admin.Group(func(users chi.Router) {
				users.Use(authMiddleware.RequirePermissions(model.PermissionUsersRead))
				users.Get("/users", userHandler.List)
				users.Get("/users/{userID}", userHandler.Get)
				users.With(authMiddleware.RequirePermissions(model.PermissionUsersWrite)).
					Patch("/users/{userID}/status", userHandler.UpdateStatus)
			})
		})
	})

	return r
}
