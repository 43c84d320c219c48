// Package auth guards the admin HTTP surface with API keys and a per-key
// rate limit. Probe endpoints (/healthz, /readyz, /metrics) stay open.
package auth

import (
	"net/http"
	"strings"

	"pressbot/pkg/logger"
)

// SecConfig holds the admin key set and rate limits for the middleware.
type SecConfig struct {
	AdminKeys map[string]struct{}
	RPS       float64
	Burst     int
}

var openPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

func requestKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Middleware returns a handler wrapper enforcing the admin key set. When no
// keys are configured everything is allowed (local/offline runs); rate
// limiting still applies per caller key or remote address.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	pool := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, open := openPaths[r.URL.Path]; open {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			limKey := key
			if limKey == "" {
				limKey = r.RemoteAddr
			}
			if !pool.Allow(limKey) {
				logger.Warn("rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
				return
			}

			if len(cfg.AdminKeys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := cfg.AdminKeys[key]; !ok {
				logger.Warn("unauthorized_request", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
