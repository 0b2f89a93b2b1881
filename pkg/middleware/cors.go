package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

type CORSConfig struct {
	// AllowOrigins lists exact origins, "*" for any, or a single leading
	// wildcard label such as "https://*.example.com".
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	// ExposeHeaders are readable by browser scripts on cross-origin
	// responses.
	ExposeHeaders []string
	MaxAgeSeconds int
}

// DefaultCORSConfig covers the searchd API for origins: every method it
// routes, the request ID header both ways, and Server-Timing so browser
// devtools can show search stage timings.
func DefaultCORSConfig(origins ...string) CORSConfig {
	return CORSConfig{
		AllowOrigins:  origins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:  []string{"Content-Type", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader, "Server-Timing", "Retry-After", "X-RateLimit-Remaining"},
		MaxAgeSeconds: 600,
	}
}

func (c CORSConfig) allows(origin string) bool {
	for _, o := range c.AllowOrigins {
		if o == "*" || o == origin {
			return true
		}
		scheme, host, ok := strings.Cut(o, "://*.")
		if ok && strings.HasPrefix(origin, scheme+"://") && strings.HasSuffix(origin, "."+host) {
			return true
		}
	}
	return false
}

// CORS answers preflights for allowed origins and decorates their other
// responses. Requests from other origins pass through undecorated, so the
// browser blocks them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAgeSeconds)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin == "" || !cfg.allows(origin) {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Timing-Allow-Origin", origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if expose != "" {
				h.Set("Access-Control-Expose-Headers", expose)
			}
			next.ServeHTTP(w, r)
		})
	}
}
