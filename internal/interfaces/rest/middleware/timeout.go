package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Timeout bounds the request context. When the deadline fires before the
// handler wrote anything, a 504 envelope is sent instead of an empty reply.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if ww.Status() == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write([]byte(`{"success":false,"error":{"code":"TIMEOUT","message":"Request timeout"}}`))
			}
		})
	}
}
