package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/homecook-backend/api/responses"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
)

const maxRequestIDLen = 64

// RequestID trusts a well-formed inbound X-Request-Id and mints a UUID
// otherwise. The id is echoed on the response and bound to the log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(responses.RequestIDHeader)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(responses.RequestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c < '!' || c > '~' {
			return false
		}
	}
	return true
}
