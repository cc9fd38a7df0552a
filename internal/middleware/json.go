package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-auth-session/internal/model"
	"go-auth-session/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	if !errors.As(err, &apiErr) {
		apiErr = apierror.Internal(err)
	}
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("request failed", "code", apiErr.Code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
