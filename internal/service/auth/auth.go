package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/models"
	"github.com/msavelyev/authgate/internal/repository"
	"github.com/msavelyev/authgate/internal/service/auth/accesstoken"
	"github.com/msavelyev/authgate/internal/service/auth/refreshtoken"
)

type Config struct {
	// Secret key to sign access tokens, required
	SecretKey string

	// JWT MAC algorithm, default HS256
	Alg string

	// Access and refresh token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Issuer and audience for access token claims
	Issuer   string
	Audience string

	// Hasher to use during registration and login
	// Default bcrypt hasher is used if not set
	Hasher PasswordHasher
}

const (
	defaultIssuer   = "authgate"
	defaultAudience = "authgate-api"
)

// Service composes hasher, access token codec and refresh token manager
// into login, refresh, logout and session resolution
type Service struct {
	hasher  PasswordHasher
	access  *accesstoken.Codec
	refresh *refreshtoken.Manager
	storage repository.Storage
}

func NewService(cfg Config, storage repository.Storage) (*Service, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = defaultAudience
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = NewBcryptHasher()
	}

	codec, err := accesstoken.New(accesstoken.Config{
		SecretKey: cfg.SecretKey,
		Alg:       cfg.Alg,
		TTL:       cfg.AccessTokenTTL,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("access token codec: %w", err)
	}

	manager, err := refreshtoken.NewManager(storage, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("refresh token manager: %w", err)
	}

	return &Service{
		hasher:  hasher,
		access:  codec,
		refresh: manager,
		storage: storage,
	}, nil
}

// NormalizeEmail lowercases and trims the email so lookups are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with the normalized email
// Fails with apperrors.ErrWeakPassword or apperrors.ErrEmailTaken
func (s *Service) Register(ctx context.Context, email string, password string) (models.User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	return s.storage.User().CreateUser(ctx, NormalizeEmail(email), hash)
}

// Login verifies credentials and issues a token pair.
//
// Password verification runs whether or not the user exists (against a dummy
// digest if not), so the two failures are indistinguishable by timing, and both
// surface as the same apperrors.ErrInvalidCredentials. The active flag is only
// checked after the credentials are confirmed valid.
func (s *Service) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, lookupErr := s.storage.User().GetUserByEmail(ctx, NormalizeEmail(email))
	if lookupErr != nil && !errors.Is(lookupErr, apperrors.ErrUserNotFound) {
		return models.User{}, models.TokenPair{}, lookupErr
	}

	digest := s.hasher.DummyDigest()
	if lookupErr == nil {
		digest = user.HashedPassword
	}

	if cmpErr := s.hasher.Compare(digest, password); cmpErr != nil || lookupErr != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, models.TokenPair{}, apperrors.ErrAccountDisabled
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

// Refresh rotates the refresh token and mints a fresh access token.
// Any token-validity failure wraps apperrors.ErrUnauthenticated, the caller
// should drop whatever session state the client holds.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (models.User, models.TokenPair, error) {
	user, refreshToken, err := s.refresh.Rotate(ctx, rawRefresh)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidRefreshToken), errors.Is(err, apperrors.ErrRefreshTokenExpired):
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	default:
		return models.User{}, models.TokenPair{}, err
	}

	accessToken, err := s.access.Issue(user.ID)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, models.TokenPair{Access: accessToken, Refresh: refreshToken}, nil
}

// Logout revokes the refresh token, idempotent from the caller's perspective
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	return s.refresh.Revoke(ctx, rawRefresh)
}

// ResolveSession verifies the access token and loads its user.
// Fails with apperrors.ErrUnauthenticated if the token is invalid or expired
// or the user is missing or inactive.
func (s *Service) ResolveSession(ctx context.Context, rawAccess string) (models.User, error) {
	userID, err := s.access.Verify(rawAccess)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}

	user, err := s.storage.User().GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrUnauthenticated
	case err != nil:
		return models.User{}, err
	case !user.IsActive:
		return models.User{}, apperrors.ErrUnauthenticated
	}

	return user, nil
}

// issuePair creates the refresh record and signs an access token in one unit of work
func (s *Service) issuePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	var pair models.TokenPair

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		refreshToken, err := s.refresh.Issue(ctx, st.Refresh(), user.ID)
		if err != nil {
			return err
		}

		accessToken, err := s.access.Issue(user.ID)
		if err != nil {
			return err
		}

		pair = models.TokenPair{Access: accessToken, Refresh: refreshToken}
		return nil
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token pair could not be issued. Err: %w", err)
	}

	return pair, nil
}
