package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AdminAuth guards admin-only endpoints with a static bearer token.
// An empty configured token disables every guarded endpoint (fail closed).
type AdminAuth struct {
	token string
}

// NewAdminAuth returns an AdminAuth for the configured token.
func NewAdminAuth(token string) AdminAuth {
	return AdminAuth{token: strings.TrimSpace(token)}
}

// Check verifies the Authorization header. On failure it writes the error
// response and returns false.
func (a AdminAuth) Check(w http.ResponseWriter, r *http.Request) bool {
	if a.token == "" {
		WriteError(w, http.StatusServiceUnavailable, "admin_disabled", "admin token not configured")
		return false
	}
	got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
		WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
		return false
	}
	return true
}
