// Package api implements the Casevault REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware returns middleware enforcing bearer-token auth on every
// request. With enabled false it is a pass-through (disabled mode). The
// token comparison is constant time.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(cred), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer"
// header. The scheme match is case-insensitive per RFC 9110.
func bearerToken(r *http.Request) (string, bool) {
	scheme, cred, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	cred = strings.TrimSpace(cred)
	return cred, cred != ""
}
