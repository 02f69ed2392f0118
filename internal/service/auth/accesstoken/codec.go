package accesstoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/models"
)

const (
	defaultTTL           = 15 * time.Minute
	defaultSigningMethod = "HS256"

	// Discriminates access tokens from any other signed assertion under the same key
	tokenType = "access"

	minSecretKeyLen = 32
)

type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// Codec config with sensible defaults
type Config struct {
	// Secret key to sign access tokens
	// Required, at least 32 bytes
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access token lifetime
	// If not set then default is used
	TTL time.Duration

	// Issuer and audience claims, required
	Issuer   string
	Audience string
}

// Codec signs and verifies short lived stateless access tokens.
// It keeps no state beyond the key, verification is a pure function
// of the key and the clock.
type Codec struct {
	key      []byte
	alg      jwt.SigningMethod
	ttl      time.Duration
	issuer   string
	audience string
}

func New(cfg Config) (*Codec, error) {
	if len(cfg.SecretKey) < minSecretKeyLen {
		return nil, fmt.Errorf("secret key must be at least %d bytes", minSecretKeyLen)
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method %q", cfg.Alg)
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}

	return &Codec{
		key:      []byte(cfg.SecretKey),
		alg:      alg,
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// Issue builds a signed access token for the user
func (c *Codec) Issue(userID uuid.UUID) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)

	token := jwt.NewWithClaims(
		c.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
				Issuer:    c.issuer,
				Audience:  jwt.ClaimStrings{c.audience},
			},
			TokenType: tokenType,
		},
	)

	signed, err := token.SignedString(c.key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses the token and checks signature, expiry, issuer, audience and type.
// Every failure collapses to apperrors.ErrInvalidAccessToken so the caller can not
// learn which check rejected the token.
func (c *Codec) Verify(raw string) (uuid.UUID, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidAccessToken, err)
	}

	if claims.TokenType != tokenType {
		return uuid.Nil, fmt.Errorf("%w: not an access token", apperrors.ErrInvalidAccessToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", apperrors.ErrInvalidAccessToken)
	}

	return userID, nil
}
