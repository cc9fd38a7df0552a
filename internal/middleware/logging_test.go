package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskQuery(t *testing.T) {
	t.Parallel()

	masked := maskQuery(url.Values{"token": {"secret.jwt.value"}, "page": {"2"}})
	assert.NotContains(t, masked, "secret.jwt.value")
	assert.Contains(t, masked, "token=REDACTED")
	assert.Contains(t, masked, "page=2")
}

func TestLoggingSetsRequestIDAndRecordsIdentity(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		annotateRequestLog(r.Context(), "u1", "s1")
		writeAPIError(w, errors.New("boom"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me?token=leaky", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	logged := buf.String()
	assert.Contains(t, logged, `"user_id":"u1"`)
	assert.Contains(t, logged, `"session_id":"s1"`)
	assert.Contains(t, logged, `"error_code":"AUTH_INTERNAL_ERROR"`)
	assert.NotContains(t, logged, "leaky")
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "AUTH_INTERNAL_ERROR", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestTimeoutBodyIsEnvelope(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-block:
		}
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "REQUEST_TIMEOUT", decodeError(t, rec))
}
