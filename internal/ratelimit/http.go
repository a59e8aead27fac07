// ABOUTME: HTTP helpers for admission limiting: client origin and 429 middleware
// ABOUTME: Origin is the remote IP, or the first X-Forwarded-For hop behind a trusted proxy

package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP returns the network origin of r used as the limiter key.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WriteTooManyRequests writes the 429 response for a rejected decision.
func WriteTooManyRequests(w http.ResponseWriter, d Decision) {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
}

// SetHeaders reports the limit state on an admitted response.
func SetHeaders(w http.ResponseWriter, d Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
}

// Middleware rejects requests from origins that exceeded the limit.
func Middleware(l *Limiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(r.Context(), ClientIP(r, trustProxy))
			if !d.Allowed {
				WriteTooManyRequests(w, d)
				return
			}
			SetHeaders(w, d)
			next.ServeHTTP(w, r)
		})
	}
}
