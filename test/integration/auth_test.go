//go:build integration

package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthFlowAndProtectedEndpoints(t *testing.T) {
	t.Parallel()

	server := newServer(t, testConfig(t))
	session := login(t, server, adminEmail, adminPassword)

	meResp, meEnv := doJSON(t, newAuthRequest(t, http.MethodGet, server.URL+"/api/v1/auth/me", nil, session.AccessToken))
	require.Equal(t, http.StatusOK, meResp.StatusCode)
	require.Contains(t, string(meEnv.Data), adminEmail)

	refreshResp, refreshEnv := doJSON(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}))
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)
	var rotated tokens
	require.NoError(t, json.Unmarshal(refreshEnv.Data, &rotated))
	require.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// The pre-rotation session is gone.
	staleResp, staleEnv := doJSON(t, newAuthRequest(t, http.MethodGet, server.URL+"/api/v1/auth/me", nil, session.AccessToken))
	require.Equal(t, http.StatusUnauthorized, staleResp.StatusCode)
	require.Equal(t, "SESSION_EXPIRED", staleEnv.Error.Code)

	logoutResp, _ := doJSON(t, newAuthRequest(t, http.MethodPost, server.URL+"/api/v1/auth/logout", nil, rotated.AccessToken))
	require.Equal(t, http.StatusOK, logoutResp.StatusCode)

	revokedResp, revokedEnv := doJSON(t, newAuthRequest(t, http.MethodGet, server.URL+"/api/v1/auth/me", nil, rotated.AccessToken))
	require.Equal(t, http.StatusUnauthorized, revokedResp.StatusCode)
	require.Equal(t, "TOKEN_BLACKLISTED", revokedEnv.Error.Code)

	anonResp, anonEnv := doJSON(t, mustNewRequest(t, http.MethodGet, server.URL+"/api/v1/auth/me", nil))
	require.Equal(t, http.StatusUnauthorized, anonResp.StatusCode)
	require.Equal(t, "TOKEN_REQUIRED", anonEnv.Error.Code)
}

func TestCookieCarriesSession(t *testing.T) {
	t.Parallel()

	server := newServer(t, testConfig(t))

	loginResp := doRequest(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/login", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	}))
	require.Equal(t, http.StatusOK, loginResp.StatusCode)

	var cookie *http.Cookie
	for _, c := range loginResp.Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	req := mustNewRequest(t, http.MethodGet, server.URL+"/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	require.Equal(t, http.StatusOK, doRequest(t, req).StatusCode)
}

func TestAuditTrailRecordsLifecycle(t *testing.T) {
	t.Parallel()

	server := newServer(t, testConfig(t))

	failedResp, _ := doJSON(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/login", map[string]string{
		"email":    adminEmail,
		"password": "wrong",
	}))
	require.Equal(t, http.StatusUnauthorized, failedResp.StatusCode)

	session := login(t, server, adminEmail, adminPassword)

	require.Eventually(t, func() bool {
		resp, env := doJSON(t, newAuthRequest(t, http.MethodGet, server.URL+"/api/v1/admin/audit?type=auth.login_failed", nil, session.AccessToken))
		if resp.StatusCode != http.StatusOK {
			return false
		}
		var data struct {
			Items []json.RawMessage `json:"items"`
		}
		return json.Unmarshal(env.Data, &data) == nil && len(data.Items) == 1
	}, 2*time.Second, 20*time.Millisecond)

	badResp, badEnv := doJSON(t, newAuthRequest(t, http.MethodGet, server.URL+"/api/v1/admin/audit?from=yesterday", nil, session.AccessToken))
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	require.Equal(t, "BAD_REQUEST", badEnv.Error.Code)
}

func TestAuthRateLimitReturns429(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.AuthRateLimitRPM = 2
	server := newServer(t, cfg)

	statuses := make([]int, 0, 4)
	for range 4 {
		resp := doRequest(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/login", map[string]string{
			"email":    adminEmail,
			"password": "wrong",
		}))
		statuses = append(statuses, resp.StatusCode)
	}

	require.Contains(t, statuses, http.StatusTooManyRequests)
}

func TestSecurityHeadersAndMetrics(t *testing.T) {
	t.Parallel()

	server := newServer(t, testConfig(t))
	login(t, server, adminEmail, adminPassword)

	healthResp := doRequest(t, mustNewRequest(t, http.MethodGet, server.URL+"/health", nil))
	require.Equal(t, http.StatusOK, healthResp.StatusCode)
	require.Equal(t, "nosniff", healthResp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", healthResp.Header.Get("X-Frame-Options"))
	require.Equal(t, "no-referrer", healthResp.Header.Get("Referrer-Policy"))

	metricsResp := doRequest(t, mustNewRequest(t, http.MethodGet, server.URL+"/metrics", nil))
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `auth_logins_total{outcome="success"} 1`))
}

func TestPostgresBackendFlow(t *testing.T) {
	cfg := postgresConfig(t, testConfig(t))
	server := newServer(t, cfg)

	session := login(t, server, cfg.SeedAdminEmail, adminPassword)

	refreshResp, refreshEnv := doJSON(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}))
	require.Equal(t, http.StatusOK, refreshResp.StatusCode)
	var rotated tokens
	require.NoError(t, json.Unmarshal(refreshEnv.Data, &rotated))

	replayResp, replayEnv := doJSON(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/refresh", map[string]string{
		"refreshToken": session.RefreshToken,
	}))
	require.Equal(t, http.StatusUnauthorized, replayResp.StatusCode)
	require.Equal(t, "REFRESH_TOKEN_EXPIRED", replayEnv.Error.Code)

	logoutResp, _ := doJSON(t, newAuthRequest(t, http.MethodPost, server.URL+"/api/v1/auth/logout", nil, rotated.AccessToken))
	require.Equal(t, http.StatusOK, logoutResp.StatusCode)

	healthResp := doRequest(t, mustNewRequest(t, http.MethodGet, server.URL+"/health", nil))
	require.Equal(t, http.StatusOK, healthResp.StatusCode)
}
