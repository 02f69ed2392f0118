package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a stored refresh token record.
// TokenHash holds a one-way digest of the secret, the secret itself is never persisted.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil while the token is live
}

// Live reports whether the record may still be rotated: not revoked and not expired
func (t RefreshToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenPair issued by the auth service on login and refresh
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
