package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Sessions is the slice of the session store the guard needs.
type Sessions interface {
	IsAdmin(r *http.Request) bool
}

// AdminOnly guards every route under the admin mount. The wrapped
// handler is never invoked without an authenticated admin session.
func AdminOnly(sessions Sessions, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.IsAdmin(r) {
				log.Debug("unauthorized access request", zap.String("path", r.URL.Path))
				writeJSON(w, http.StatusUnauthorized, CommandResponse{Msg: "unauthorized access request"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
