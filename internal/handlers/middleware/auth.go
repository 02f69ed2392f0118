package middleware

import (
	"context"
	"net/http"

	"github.com/msavelyev/authgate/internal/handlers/render"
	"github.com/msavelyev/authgate/internal/handlers/userctx"
	"github.com/msavelyev/authgate/internal/models"
)

type sessionResolver interface {
	// Resolve access token into its user
	// Has to fail if the token is invalid or the user is missing or inactive
	ResolveSession(ctx context.Context, rawAccess string) (models.User, error)
}

// Auth guards protected endpoints: extracts the access token with tokenFn,
// resolves the session and puts the user into the request context
func Auth(resolver sessionResolver, tokenFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFn(r)
			if raw == "" {
				render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			user, err := resolver.ResolveSession(r.Context(), raw)
			if err != nil {
				render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
