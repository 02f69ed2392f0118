package middleware

import (
	"net/http"

	logpkg "github.com/msavelyev/authgate/internal/logger"
)

// SecurityHeaders adds defensive headers to every response.
// HSTS is set outside development only, TLS termination happens at the edge
// so the request scheme may still be http.
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	hsts := environment != logpkg.EnvDevelopment

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
