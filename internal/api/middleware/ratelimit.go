package middleware

import (
	"net"
	"net/http"
	"strings"

	"voicediary/internal/api/response"
	"voicediary/internal/ratelimit"
)

// RateLimit applies per-client admission control on the submit path.
type RateLimit struct {
	limiter *ratelimit.Limiter
}

// NewRateLimit creates the rate-limit middleware over a limiter.
func NewRateLimit(l *ratelimit.Limiter) *RateLimit {
	return &RateLimit{limiter: l}
}

// Limit rejects clients that exceed the sliding-window limits, keyed by
// client IP.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
