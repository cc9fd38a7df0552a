//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-auth-session/internal/app"
	"go-auth-session/internal/config"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "Password123!"
)

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	stateDir := t.TempDir()
	return &config.Config{
		ServerPort:         "0",
		ServerReadTimeout:  15 * time.Second,
		ServerWriteTimeout: 30 * time.Second,
		ServerIdleTimeout:  120 * time.Second,
		RequestTimeout:     10 * time.Second,
		JWTAccessSecret:    "integration-access-secret",
		JWTRefreshSecret:   "integration-refresh-secret",
		JWTAccessTTL:       15 * time.Minute,
		JWTRefreshTTL:      7 * 24 * time.Hour,
		SessionTTL:         24 * time.Hour,
		StoreBackend:       config.StoreBackendMemory,
		StoreSweepInterval: time.Minute,
		UsersFile:          filepath.Join(stateDir, "users.json"),
		SeedAdminEmail:     adminEmail,
		SeedAdminPassword:  adminPassword,
		CORSOrigins:        []string{"*"},
		RateLimitRPM:       1000,
		AuthRateLimitRPM:   1000,
		AuditLogFile:       filepath.Join(stateDir, "audit.log"),
		LogLevel:           "error",
		LogFormat:          "json",
	}
}

// postgresConfig switches cfg to the PostgreSQL backend, skipping when no database is configured.
// The database must be dedicated to these tests: the administrator is only seeded into an empty users table.
func postgresConfig(t *testing.T, cfg *config.Config) *config.Config {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg.StoreBackend = config.StoreBackendPostgres
	cfg.DatabaseURL = url
	cfg.DBMaxConns = 4
	return cfg
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	require.NoError(t, cfg.Validate())

	application, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func login(t *testing.T, server *httptest.Server, email string, password string) tokens {
	t.Helper()

	resp, env := doJSON(t, mustNewRequest(t, http.MethodPost, server.URL+"/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var parsed tokens
	require.NoError(t, json.Unmarshal(env.Data, &parsed))
	require.NotEmpty(t, parsed.AccessToken)
	require.NotEmpty(t, parsed.RefreshToken)
	return parsed
}

func mustNewRequest(t *testing.T, method string, url string, body any) *http.Request {
	t.Helper()

	var payloadReader *bytes.Reader
	if body == nil {
		payloadReader = bytes.NewReader([]byte{})
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payloadReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, payloadReader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req
}

func newAuthRequest(t *testing.T, method string, url string, body any, accessToken string) *http.Request {
	t.Helper()

	req := mustNewRequest(t, method, url, body)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req
}

func doRequest(t *testing.T, req *http.Request) *http.Response {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func doJSON(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp := doRequest(t, req)
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}
