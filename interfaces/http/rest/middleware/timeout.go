package middleware

import (
	"context"
	"net/http"
	"time"
)

// DynamicTimeout bounds each request with a deadline read at request
// time, so a hot-reloaded limit applies to in-flight traffic without a
// restart.
func DynamicTimeout(seconds func() int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout := time.Duration(seconds()) * time.Second
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
