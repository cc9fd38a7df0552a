package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-auth-session/internal/credential"
	"go-auth-session/internal/metrics"
	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

type sessionValidator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*model.AuthSession, error)
}

type contextKey string

const authSessionContextKey contextKey = "auth_session"

// AuthMiddleware guards routes. RequireAuth must run before RequireRoles or RequirePermissions.
type AuthMiddleware struct {
	validator sessionValidator
	metrics   *metrics.Metrics
}

func NewAuthMiddleware(validator sessionValidator, m *metrics.Metrics) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, metrics: m}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := credential.FromRequest(r)
		if token == "" {
			m.reject(w, apierror.TokenRequired())
			return
		}

		auth, err := m.validator.ValidateAccess(r.Context(), token)
		if err != nil {
			m.reject(w, err)
			return
		}

		annotateRequestLog(r.Context(), auth.User.ID, auth.Session.SessionID)

		ctx := context.WithValue(r.Context(), authSessionContextKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRoles admits callers whose role matches any of roles, ignoring case.
func (m *AuthMiddleware) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, role := range roles {
		roleSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := SessionFromContext(r.Context())
			if !ok {
				m.reject(w, apierror.TokenRequired())
				return
			}

			if _, exists := roleSet[strings.ToLower(strings.TrimSpace(auth.User.Role))]; !exists {
				m.reject(w, apierror.InsufficientPermissions())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermissions admits callers holding every one of permissions.
func (m *AuthMiddleware) RequirePermissions(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := SessionFromContext(r.Context())
			if !ok {
				m.reject(w, apierror.TokenRequired())
				return
			}

			for _, permission := range permissions {
				if !auth.User.HasPermission(permission) {
					m.reject(w, apierror.InsufficientPermissions())
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func SessionFromContext(ctx context.Context) (*model.AuthSession, bool) {
	auth, ok := ctx.Value(authSessionContextKey).(*model.AuthSession)
	return auth, ok && auth != nil
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, err error) {
	m.metrics.GuardRejected(apierror.CodeOf(err))
	writeAPIError(w, err)
}
