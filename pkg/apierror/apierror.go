package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeTokenRequired           = "TOKEN_REQUIRED"
	CodeTokenBlacklisted        = "TOKEN_BLACKLISTED"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeUserInactive            = "USER_INACTIVE"
	CodeSessionExpired          = "SESSION_EXPIRED"
	CodeRefreshTokenExpired     = "REFRESH_TOKEN_EXPIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeInternal                = "AUTH_INTERNAL_ERROR"
	CodeBadRequest              = "BAD_REQUEST"
	CodeRateLimited             = "RATE_LIMITED"
	CodeRequestTimeout          = "REQUEST_TIMEOUT"
	CodeNotFound                = "NOT_FOUND"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the internal cause for logging. It is never serialized.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func TokenRequired() *APIError {
	return New(CodeTokenRequired, "authentication token is required", "", http.StatusUnauthorized)
}

func TokenBlacklisted() *APIError {
	return New(CodeTokenBlacklisted, "token has been revoked", "", http.StatusUnauthorized)
}

func Unauthorized() *APIError {
	return New(CodeUnauthorized, "invalid or expired token", "", http.StatusUnauthorized)
}

func UserNotFound() *APIError {
	return New(CodeUserNotFound, "user not found", "", http.StatusUnauthorized)
}

func UserInactive() *APIError {
	return New(CodeUserInactive, "user account is not active", "", http.StatusUnauthorized)
}

func SessionExpired() *APIError {
	return New(CodeSessionExpired, "session has expired", "", http.StatusUnauthorized)
}

func RefreshTokenExpired() *APIError {
	return New(CodeRefreshTokenExpired, "refresh token is expired or already used", "", http.StatusUnauthorized)
}

func InsufficientPermissions() *APIError {
	return New(CodeInsufficientPermissions, "insufficient permissions", "", http.StatusForbidden)
}

func InvalidCredentials() *APIError {
	return New(CodeInvalidCredentials, "invalid credentials", "", http.StatusUnauthorized)
}

func BadRequest(message string, details string) *APIError {
	return New(CodeBadRequest, message, details, http.StatusBadRequest)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func RateLimited() *APIError {
	return New(CodeRateLimited, "too many requests", "", http.StatusTooManyRequests)
}

// Internal hides err from the client but keeps it reachable through errors.Unwrap.
func Internal(err error) *APIError {
	e := New(CodeInternal, "internal authentication error", "", http.StatusInternalServerError)
	e.cause = err
	return e
}

// CodeOf returns the stable code carried by err, or CodeInternal for anything else.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeInternal
}
