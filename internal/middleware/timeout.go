package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

// Timeout bounds handler time. The request context is cancelled at the deadline, so store
// and directory calls made by the handler abort with it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	body, _ := json.Marshal(model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apierror.CodeRequestTimeout,
			Message: "request timed out",
		},
	})

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
