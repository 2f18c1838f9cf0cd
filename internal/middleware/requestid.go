package middleware

import (
	"context"
	"net/http"

	"github.com/SangwoonYun/ks-rewards.com/pkg/uid"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID tags each request with a correlation ID. An inbound
// X-Request-ID header is honored so callers can thread their own IDs
// through; otherwise a fresh one is generated. The ID is echoed back
// in the response header and stored in the request context for the
// logging and recovery middlewares.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uid.New()
		}
		w.Header().Set("X-Request-ID", id)

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// GetRequestID returns the correlation ID stored by RequestID, or ""
// when the middleware is not installed.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
