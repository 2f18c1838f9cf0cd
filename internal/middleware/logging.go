package middleware

import (
	"log"
	"net/http"
	"time"
)

// Logging writes one access log line per request, including the
// correlation ID set by RequestID.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("[%s] %s %s %d %s rid=%s",
			r.Method, r.URL.Path, r.RemoteAddr,
			rec.status, time.Since(start), GetRequestID(r.Context()))
	})
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
