package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth requires "Authorization: Bearer <token>" (or ?token= for
// WebSocket viewers) on /api and /logs requests. An empty token disables the
// check.
func TokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Strona kiosku i zasoby statyczne sa publiczne
			if !strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/logs/") {
				next.ServeHTTP(w, r)
				return
			}

			given := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if given == "" {
				given = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
