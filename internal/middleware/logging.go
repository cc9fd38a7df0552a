package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-auth-session/internal/credential"
)

const requestIDHeader = "X-Request-ID"

const requestLogContextKey contextKey = "request_log"

// errorBody is a minimal struct used to extract error details from JSON responses.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// requestLog carries identity resolved deeper in the chain back out to the access log.
type requestLog struct {
	mu        sync.Mutex
	userID    string
	sessionID string
}

func annotateRequestLog(ctx context.Context, userID string, sessionID string) {
	entry, ok := ctx.Value(requestLogContextKey).(*requestLog)
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.userID = userID
	entry.sessionID = sessionID
	entry.mu.Unlock()
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, requestID)

		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		entry := &requestLog{}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), requestLogContextKey, entry)))

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", extractClientIP(r),
		}

		entry.mu.Lock()
		if entry.userID != "" {
			attrs = append(attrs, "user_id", entry.userID, "session_id", entry.sessionID)
		}
		entry.mu.Unlock()

		if wrapped.status >= 400 && r.URL.RawQuery != "" {
			attrs = append(attrs, "query", maskQuery(r.URL.Query()))
		}

		if wrapped.status >= 400 && wrapped.body.Len() > 0 {
			var parsed errorBody
			if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != nil {
				attrs = append(attrs, "error_code", parsed.Error.Code)
				attrs = append(attrs, "error_message", parsed.Error.Message)
				if parsed.Error.Details != "" {
					attrs = append(attrs, "error_details", parsed.Error.Details)
				}
			}
		}

		switch {
		case wrapped.status >= 500:
			slog.Error("request", attrs...)
		case wrapped.status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

// maskQuery hides credentials passed as query parameters.
func maskQuery(values url.Values) string {
	if values.Has(credential.QueryToken) {
		values.Set(credential.QueryToken, "REDACTED")
	}
	return values.Encode()
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	// Only error bodies are buffered, for the error_code attribute.
	if rw.status >= 400 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
