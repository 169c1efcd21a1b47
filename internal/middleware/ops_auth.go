package middleware

import (
	"net/http"

	"github.com/beamline/signage-server-go/internal/audit"
	"github.com/beamline/signage-server-go/internal/util"
)

// OpsAuthMiddleware protects the read-only operational endpoints with
// HTTP basic auth against a bcrypt hash from config. An empty hash
// disables the endpoints entirely.
type OpsAuthMiddleware struct {
	passwordHash string
}

func NewOpsAuthMiddleware(passwordHash string) *OpsAuthMiddleware {
	return &OpsAuthMiddleware{passwordHash: passwordHash}
}

func (m *OpsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "Not found",
			})
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || !util.CheckPasswordHash(password, m.passwordHash) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			w.Header().Set("WWW-Authenticate", `Basic realm="ops"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Unauthorized",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
