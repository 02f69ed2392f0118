package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/msavelyev/authgate/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user with already normalized email
	// If a user with the email exists has to return apperrors.ErrEmailTaken
	CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error)

	// Get user by id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RefreshToken repository interface
// Lookups are by digest and restricted to non-revoked rows, so a revoked token
// never matches again even if its digest is correct
type RefreshTokenRepo interface {
	// Save new token record
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the non-revoked record with the given digest, expired or not
	// If no such record must return apperrors.ErrInvalidRefreshToken
	GetLiveByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Same as GetLiveByHash but takes an exclusive row lock
	// Must be called inside a transaction, the lock is held until it ends
	GetLiveByHashForUpdate(ctx context.Context, tokenHash string) (models.RefreshToken, error)

	// Set revoked_at on the record. The record must exist and not be revoked yet
	MarkRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) error

	// Revoke the non-revoked record with the given digest if there is one
	// Reports whether a row was actually revoked, absence is not an error
	RevokeByHash(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error)
}

// Storage aggregates the repositories over a single connection or transaction
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// InTx runs fn against a transaction-scoped Storage
	// Commits when fn returns nil, rolls the whole unit back otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
