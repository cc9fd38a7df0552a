package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"

	"go-auth-session/internal/credential"
)

// CORS allows the credential headers through. Cookies are only sent cross-origin when
// the origin list is explicit; a wildcard disables credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"X-Request-ID",
			credential.HeaderAuthorization,
			credential.HeaderAuthToken,
			credential.HeaderAccessToken,
		},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: !slices.Contains(origins, "*"),
	})

	return handler.Handler
}
