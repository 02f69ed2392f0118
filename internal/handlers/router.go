package handlers

import (
	"context"
	"net/http"

	"github.com/msavelyev/authgate/internal/handlers/middleware"
	"github.com/msavelyev/authgate/internal/handlers/render"
	"github.com/msavelyev/authgate/internal/logger"
	"github.com/msavelyev/authgate/internal/models"
	"github.com/msavelyev/authgate/internal/ratelimit"
)

// SessionResolver is the per-request authorization check for protected endpoints
type SessionResolver interface {
	ResolveSession(ctx context.Context, rawAccess string) (models.User, error)
}

type RouterConfig struct {
	Environment string

	// Origin allowed to call the API with credentials, development only
	CORSOrigin string

	// Whether the edge infrastructure sets X-Forwarded-For authoritatively
	TrustForwardedFor bool
}

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	cfg RouterConfig,
	auth *AuthHandler,
	sessions SessionResolver,
	loginLimiter ratelimit.Limiter,
	registerLimiter ratelimit.Limiter,
	metricsHandler http.Handler,
	l logger.Logger,
) http.Handler {
	clientIP := middleware.ClientIP(cfg.TrustForwardedFor)
	withAuth := middleware.Auth(sessions, AccessFromRequest)

	// Login and register are rate limited independently of each other,
	// refresh and logout are guarded by the single-use tokens themselves
	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", chain(
		http.HandlerFunc(auth.register),
		middleware.RateLimit(registerLimiter, clientIP, l),
	))
	apiauth.Handle("POST /login", chain(
		http.HandlerFunc(auth.login),
		middleware.RateLimit(loginLimiter, clientIP, l),
	))
	apiauth.HandleFunc("POST /refresh", auth.refresh)
	apiauth.HandleFunc("POST /logout", auth.logout)
	apiauth.Handle("GET /me", withAuth(auth.Me()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.HandleFunc("GET /health", handleHealth)
	root.Handle("GET /metrics", metricsHandler)

	handler := chain(root,
		middleware.SecurityHeaders(cfg.Environment),
		middleware.Logger(l),
	)

	if cfg.Environment == logger.EnvDevelopment && cfg.CORSOrigin != "" {
		handler = middleware.CORS(cfg.CORSOrigin)(handler)
	}

	return handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		Status string `json:"status"`
	}

	render.JSON(w, HealthResponse{Status: "ok"})
}
