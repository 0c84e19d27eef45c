package authn

import (
	"crypto/subtle"
	"crypto/sha256"
	"net/http"
	"strings"
)

// CheckAdminBearer reports whether r carries the shared admin token as
// "Authorization: Bearer <token>", compared in constant time so response
// latency cannot leak how many leading bytes matched.
func CheckAdminBearer(r *http.Request, expected string) bool {
	if expected == "" {
		return false
	}
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return false
	}
	got := strings.TrimPrefix(authHeader, prefix)

	gotSum := sha256.Sum256([]byte(got))
	wantSum := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(gotSum[:], wantSum[:]) == 1
}

// RequireAdminBearer is HTTP middleware rejecting requests that fail
// CheckAdminBearer before they reach the notify handlers.
func RequireAdminBearer(expected string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !CheckAdminBearer(r, expected) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
