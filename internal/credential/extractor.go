// Package credential locates the bearer token carried by an inbound request.
package credential

import (
	"net/http"
	"strings"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderAuthToken     = "X-Auth-Token"
	HeaderAccessToken   = "X-Access-Token"
	QueryToken          = "token"

	bearerPrefix = "bearer "
)

// CookieNames are checked in order; the first non-empty cookie wins.
var CookieNames = []string{"token", "auth_token", "authToken"}

// FromRequest returns the first credential found, walking the carriers in precedence
// order: Authorization bearer, X-Auth-Token, cookies, ?token=, X-Access-Token.
// An empty string means no credential was presented.
func FromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}

	if token := bearer(r.Header.Get(HeaderAuthorization)); token != "" {
		return token
	}

	if token := strings.TrimSpace(r.Header.Get(HeaderAuthToken)); token != "" {
		return token
	}

	for _, name := range CookieNames {
		cookie, err := r.Cookie(name)
		if err != nil {
			continue
		}
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get(QueryToken)); token != "" {
		return token
	}

	return strings.TrimSpace(r.Header.Get(HeaderAccessToken))
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}
