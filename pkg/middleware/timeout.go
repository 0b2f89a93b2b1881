package middleware

import (
	"net/http"
	"strings"
	"time"
)

// Timeout cuts requests off after d with a 503 JSON body. Paths under an
// exempt prefix, such as exports and rebuilds, run unbounded.
func Timeout(d time.Duration, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		bounded := http.TimeoutHandler(next, d, `{"error":"request timed out"}`)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range exempt {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			bounded.ServeHTTP(w, r)
		})
	}
}
