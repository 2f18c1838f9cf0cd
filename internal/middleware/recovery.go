package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/SangwoonYun/ks-rewards.com/pkg/apierror"
)

// Recovery converts handler panics into 500 responses instead of
// tearing down the connection. The panic value and stack are logged
// with the request's correlation ID so the crash can be matched to
// the access log line.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("[Recovery] panic on %s %s rid=%s: %v\n%s",
					r.Method, r.URL.Path, GetRequestID(r.Context()), v, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write(apierror.InternalError("internal server error").ToJSON())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
