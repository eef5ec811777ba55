package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware enforces a static bearer token on every admin request.
// An empty token disables auth (local development only).
func AuthMiddleware(token string, logger *slog.Logger, next http.Handler) http.Handler {
	if token == "" {
		logger.Warn("admin API auth disabled: no token configured")
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.Warn("admin API auth failed",
				"remote_addr", r.RemoteAddr, "method", r.Method, "path", r.URL.Path)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
