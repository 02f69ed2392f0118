package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/handlers/render"
	"github.com/msavelyev/authgate/internal/handlers/userctx"
	"github.com/msavelyev/authgate/internal/logger"
	"github.com/msavelyev/authgate/internal/metrics"
	"github.com/msavelyev/authgate/internal/models"
)

type authService interface {
	// Register user with email and password
	// Has to return apperrors.ErrEmailTaken or apperrors.ErrWeakPassword on rejection
	Register(ctx context.Context, email string, password string) (models.User, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials or apperrors.ErrAccountDisabled
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Refresh rotates the refresh token
	// Has to return an error wrapping apperrors.ErrUnauthenticated when the token is rejected
	Refresh(ctx context.Context, rawRefresh string) (models.User, models.TokenPair, error)

	// Logout revokes the refresh token, idempotent
	Logout(ctx context.Context, rawRefresh string) error
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

type AuthHandler struct {
	auth    authService
	cookies CookieConfig
	metrics *metrics.Metrics
	logger  logger.Logger
}

func NewAuth(auth authService, cookies CookieConfig, m *metrics.Metrics, l logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		cookies: cookies,
		metrics: m,
		logger:  l,
	}
}

// Me returns the handler for the current session user.
// Expects the auth middleware to have put the user into the context.
func (h *AuthHandler) Me() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		render.JSON(w, toUserResponse(user))
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.auth.Register(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmailTaken):
			h.metrics.Registrations.WithLabelValues(metrics.ResultRejected).Inc()
			render.ServiceError(w, "Email already registered", http.StatusConflict)
		case errors.Is(err, apperrors.ErrWeakPassword):
			h.metrics.Registrations.WithLabelValues(metrics.ResultRejected).Inc()
			render.ServiceError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
			h.logger.Error("registration failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Registrations.WithLabelValues(metrics.ResultOK).Inc()
	render.JSONWithStatus(w, toUserResponse(user), http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.auth.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			h.metrics.Logins.WithLabelValues(metrics.ResultRejected).Inc()
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrAccountDisabled):
			h.metrics.Logins.WithLabelValues(metrics.ResultRejected).Inc()
			render.ServiceError(w, "Account is deactivated", http.StatusForbidden)
		default:
			h.metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
			h.logger.Error("login failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Logins.WithLabelValues(metrics.ResultOK).Inc()
	setAuthCookies(w, h.cookies, pair)
	render.JSON(w, toUserResponse(user))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	raw := refreshFromRequest(r)
	if raw == "" {
		render.ServiceError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	user, pair, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnauthenticated):
			// The token was rejected, whatever session the client holds is dead
			h.metrics.Rotations.WithLabelValues(metrics.ResultRejected).Inc()
			clearAuthCookies(w, h.cookies)
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			h.metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
			h.logger.Error("token refresh failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.metrics.Rotations.WithLabelValues(metrics.ResultOK).Inc()
	setAuthCookies(w, h.cookies, pair)
	render.JSON(w, toUserResponse(user))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	if raw := refreshFromRequest(r); raw != "" {
		if err := h.auth.Logout(r.Context(), raw); err != nil {
			h.logger.Error("logout failed", "error", err.Error())
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	clearAuthCookies(w, h.cookies)
	render.JSON(w, LogoutResponse{Message: "Logged out"})
}
