package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jmylchreest/epgnow/internal/observability"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID stores the caller's X-Request-ID, or a new UUID, in the request
// context and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), requestID)))
	})
}
