package actor

import (
	"net/http"
	"strings"

	"schedule-service/internal/models"
	"schedule-service/internal/service"
)

const (
	HeaderID   = "X-Actor-ID"
	HeaderRole = "X-Actor-Role"
)

// New copies the caller identity set by the upstream gateway into the
// request context for the audit log.
func New(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := models.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderID)),
			Role: strings.TrimSpace(r.Header.Get(HeaderRole)),
		}

		if a.ID != "" || a.Role != "" {
			r = r.WithContext(service.WithActor(r.Context(), a))
		}

		next.ServeHTTP(w, r)
	})
}
