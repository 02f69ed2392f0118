package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/msavelyev/authgate/internal/db"
	"github.com/msavelyev/authgate/internal/handlers"
	"github.com/msavelyev/authgate/internal/logger"
	"github.com/msavelyev/authgate/internal/metrics"
	"github.com/msavelyev/authgate/internal/ratelimit"
	"github.com/msavelyev/authgate/internal/repository/postgres"
	"github.com/msavelyev/authgate/internal/service/auth"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	authService, err := auth.NewService(auth.Config{
		SecretKey:       c.SecretKey,
		AccessTokenTTL:  c.AccessTokenTTL,
		RefreshTokenTTL: c.RefreshTokenTTL,
		Issuer:          c.TokenIssuer,
		Audience:        c.TokenAudience,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	loginLimiter, registerLimiter := newLimiters(c)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	authMetrics := metrics.New(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	authHandler := handlers.NewAuth(
		authService,
		handlers.CookieConfig{Secure: c.CookieSecure, Domain: c.CookieDomain},
		authMetrics,
		log,
	)

	mux := handlers.NewRouter(
		handlers.RouterConfig{
			Environment:       c.Environment,
			CORSOrigin:        c.CORSOrigin,
			TrustForwardedFor: c.TrustForwardedFor,
		},
		authHandler,
		authService,
		loginLimiter,
		registerLimiter,
		metricsHandler,
		log,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     log,
	}, nil
}

// newLimiters builds admission control for login and register independently:
// Redis-backed when an address is configured, per-process otherwise
func newLimiters(c *Config) (login ratelimit.Limiter, register ratelimit.Limiter) {
	loginCfg := ratelimit.Config{MaxAttempts: c.LoginMaxAttempts, Window: c.RateLimitWindow}
	registerCfg := ratelimit.Config{MaxAttempts: c.RegisterMaxAttempts, Window: c.RateLimitWindow}

	if c.RedisAddr == "" {
		return ratelimit.NewMemory(loginCfg), ratelimit.NewMemory(registerCfg)
	}

	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	return ratelimit.NewRedis(client, "rl:login", loginCfg),
		ratelimit.NewRedis(client, "rl:register", registerCfg)
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled, then close connections gracefully
	s.Logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
