package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

type stubValidator struct {
	sessions map[string]*model.AuthSession
	calls    int
}

func (v *stubValidator) ValidateAccess(_ context.Context, token string) (*model.AuthSession, error) {
	v.calls++
	if token == "broken-store" {
		return nil, apierror.Internal(context.DeadlineExceeded)
	}
	auth, ok := v.sessions[token]
	if !ok {
		return nil, apierror.Unauthorized()
	}
	return auth, nil
}

func newStubValidator() *stubValidator {
	return &stubValidator{sessions: map[string]*model.AuthSession{
		"admin-token": {
			User:    model.AuthUser{ID: "u1", Role: "Admin", Permissions: []string{"users:read", "users:write"}},
			Session: model.Session{UserID: "u1", SessionID: "s1", Active: true},
		},
		"viewer-token": {
			User:    model.AuthUser{ID: "u2", Role: "viewer", Permissions: []string{"users:read"}},
			Session: model.Session{UserID: "u2", SessionID: "s2", Active: true},
		},
	}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func guardedRouter(mw *AuthMiddleware, reached *bool) http.Handler {
	r := chi.NewRouter()
	ok := func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		auth, found := SessionFromContext(r.Context())
		if !found {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-User", auth.User.ID)
		w.WriteHeader(http.StatusOK)
	}

	r.With(mw.RequireAuth).Get("/me", ok)
	r.With(mw.RequireAuth, mw.RequireRoles("admin", "auditor")).Get("/admin", ok)
	r.With(mw.RequireAuth, mw.RequirePermissions("users:read", "users:write")).Get("/users", ok)
	return r
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		prepare  func(*http.Request)
		status   int
		code     string
		wantUser string
	}{
		{name: "no credential", prepare: func(*http.Request) {}, status: http.StatusUnauthorized, code: apierror.CodeTokenRequired},
		{name: "invalid token", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized, code: apierror.CodeUnauthorized},
		{name: "internal failure", prepare: func(r *http.Request) { r.Header.Set("X-Auth-Token", "broken-store") }, status: http.StatusInternalServerError, code: apierror.CodeInternal},
		{name: "bearer header", prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer admin-token") }, status: http.StatusOK, wantUser: "u1"},
		{name: "cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth_token", Value: "viewer-token"}) }, status: http.StatusOK, wantUser: "u2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			reached := false
			router := guardedRouter(NewAuthMiddleware(newStubValidator(), nil), &reached)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.False(t, reached, "handler must not run")
				assert.Equal(t, tc.code, decodeError(t, rec))
				return
			}
			assert.Equal(t, tc.wantUser, rec.Header().Get("X-User"))
		})
	}
}

func TestRequireAuthSkipsValidationWithoutToken(t *testing.T) {
	t.Parallel()

	validator := newStubValidator()
	reached := false
	router := guardedRouter(NewAuthMiddleware(validator, nil), &reached)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, validator.calls)
	assert.False(t, reached)
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	reached := false
	router := guardedRouter(NewAuthMiddleware(newStubValidator(), nil), &reached)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "role match ignores case")

	reached = false
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer viewer-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apierror.CodeInsufficientPermissions, decodeError(t, rec))
	assert.False(t, reached)
}

func TestRequirePermissionsNeedsAll(t *testing.T) {
	t.Parallel()

	reached := false
	router := guardedRouter(NewAuthMiddleware(newStubValidator(), nil), &reached)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	reached = false
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer viewer-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apierror.CodeInsufficientPermissions, decodeError(t, rec))
	assert.False(t, reached)
}

func TestGuardsWithoutRequireAuth(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(newStubValidator(), nil)
	handler := mw.RequirePermissions("users:read")(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apierror.CodeTokenRequired, decodeError(t, rec))
}
