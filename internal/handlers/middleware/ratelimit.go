package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/msavelyev/authgate/internal/handlers/render"
	"github.com/msavelyev/authgate/internal/ratelimit"
)

// RateLimit applies admission control before the request reaches the handler.
// Backend failures surface as 500, not as a rejection: an unavailable limiter
// must not look like "too many attempts" to the client.
func RateLimit(limiter ratelimit.Limiter, keyFn func(*http.Request) string, l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := limiter.Allow(r.Context(), keyFn(r))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ratelimit.ErrRateLimited):
				render.ServiceError(w, "Too many attempts, try again later", http.StatusTooManyRequests)
			default:
				l.Info("rate limiter unavailable", "error", err.Error())
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
		})
	}
}

// ClientIP derives the rate limit key for a request.
// X-Forwarded-For is only honored when the deployment's edge is known to set
// it authoritatively, a self-reported header is trivial to spoof.
func ClientIP(trustForwardedFor bool) func(*http.Request) string {
	return func(r *http.Request) string {
		if trustForwardedFor {
			if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
				// First address in the chain is the original client
				return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
			}
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
}
