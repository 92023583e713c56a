package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/estatedesk/lead-router/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Load balancer and health-check ids are short tokens; anything else is replaced so
// it cannot smuggle junk into structured logs.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestID adopts a well-formed upstream X-Request-Id or mints one, echoes
// it on the response and tags the request's log context with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), reqID)))
		})
	}
}
