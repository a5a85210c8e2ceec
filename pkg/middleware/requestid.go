package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/newsroom-io/syndication-detector/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a UUID (or propagates the caller's) and
// stores it in the request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
