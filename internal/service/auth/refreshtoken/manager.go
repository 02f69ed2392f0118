package refreshtoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/models"
	"github.com/msavelyev/authgate/internal/repository"
)

const (
	defaultTTL = 7 * 24 * time.Hour

	// 256 bits of entropy per secret
	secretLen = 32
)

// Manager owns the refresh token lifecycle: issue, rotate, revoke.
// Records move Live -> Revoked exactly once, expiry is implicit via the clock.
type Manager struct {
	storage repository.Storage
	ttl     time.Duration
}

func NewManager(storage repository.Storage, ttl time.Duration) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}
	if ttl == 0 {
		ttl = defaultTTL
	}

	return &Manager{storage: storage, ttl: ttl}, nil
}

// HashSecret returns the digest under which a raw secret is stored.
// Deterministic so the record can be found by lookup, one-way so a stolen
// database does not yield usable tokens.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue creates a live record for the user and returns the raw secret,
// the only time the secret exists server side.
// Writes through the given repo so it joins the caller's transaction.
func (m *Manager) Issue(ctx context.Context, repo repository.RefreshTokenRepo, userID uuid.UUID) (models.IssuedToken, error) {
	b := make([]byte, secretLen)
	if _, err := rand.Read(b); err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while generating refresh secret. Err: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(b)

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	err := repo.Save(ctx, models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: HashSecret(raw),
		CreatedAt: now,
		ExpiresAt: expiresAt,
		RevokedAt: nil,
	})
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.IssuedToken{Value: raw, ExpiresAt: expiresAt}, nil
}

// Rotate validates the secret, revokes its record and issues a successor for the
// same user, all in one transaction. The row is locked before its state is read,
// so concurrent rotations of the same secret produce exactly one winner: the
// losers find no live row and fail with ErrInvalidRefreshToken.
//
// A valid-looking secret that fails here was likely rotated past already.
// Callers may treat that as a sign of token theft.
func (m *Manager) Rotate(ctx context.Context, raw string) (models.User, models.IssuedToken, error) {
	var user models.User
	var issued models.IssuedToken

	err := m.storage.InTx(ctx, func(s repository.Storage) error {
		token, err := s.Refresh().GetLiveByHashForUpdate(ctx, HashSecret(raw))
		if err != nil {
			return err
		}

		now := time.Now()
		if token.ExpiresAt.Before(now) {
			return apperrors.ErrRefreshTokenExpired
		}

		// The old token is dead from here on regardless of what happens next,
		// rollback reverts both the revoke and the new issue together
		if err := s.Refresh().MarkRevoked(ctx, token.ID, now); err != nil {
			return err
		}

		user, err = s.User().GetUserByID(ctx, token.UserID)
		if err != nil {
			return err
		}

		issued, err = m.Issue(ctx, s.Refresh(), token.UserID)
		return err
	})
	if err != nil {
		return models.User{}, models.IssuedToken{}, err
	}

	return user, issued, nil
}

// Revoke marks the live record for the secret revoked.
// Idempotent: revoking twice or revoking an expired or unknown secret is a no-op.
func (m *Manager) Revoke(ctx context.Context, raw string) error {
	_, err := m.storage.Refresh().RevokeByHash(ctx, HashSecret(raw), time.Now())
	return err
}
