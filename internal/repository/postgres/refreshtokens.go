package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/models"
)

type RefreshTokenRepo struct {
	db DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) error {
	rows, _ := r.db.Query(ctx, saveToken, token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.RevokedAt)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const getLiveByHash = `-- name: GetLiveByHash
SELECT id, user_id, token_hash, created_at, expires_at, revoked_at
FROM refresh_tokens
WHERE token_hash = $1 AND revoked_at IS NULL
`

// Return the non-revoked record for the digest
// Expired records are returned too, expiry is decided by the caller
func (r *RefreshTokenRepo) GetLiveByHash(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	rows, _ := r.db.Query(ctx, getLiveByHash, tokenHash)
	return collectToken(rows)
}

const getLiveByHashForUpdate = getLiveByHash + `FOR UPDATE
`

// Same as GetLiveByHash but locks the row until the surrounding transaction ends
// Two requests racing to rotate the same token serialize here: the loser re-reads
// after commit and finds no live row anymore
func (r *RefreshTokenRepo) GetLiveByHashForUpdate(ctx context.Context, tokenHash string) (models.RefreshToken, error) {
	rows, _ := r.db.Query(ctx, getLiveByHashForUpdate, tokenHash)
	return collectToken(rows)
}

const markRevoked = `-- name: MarkRevoked
UPDATE refresh_tokens
SET revoked_at = $2
WHERE id = $1 AND revoked_at IS NULL
RETURNING id
`

func (r *RefreshTokenRepo) MarkRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	rows, _ := r.db.Query(ctx, markRevoked, id, revokedAt)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("repo error: %w", apperrors.ErrInvalidRefreshToken)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const revokeByHash = `-- name: RevokeByHash
UPDATE refresh_tokens
SET revoked_at = $2
WHERE token_hash = $1 AND revoked_at IS NULL
`

// Revoke the live record with the digest if there is one
// Revoking an already revoked or missing token is a no-op, not an error
func (r *RefreshTokenRepo) RevokeByHash(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, revokeByHash, tokenHash, revokedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func collectToken(rows pgx.Rows) (models.RefreshToken, error) {
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.RefreshToken, error) {
		var t models.RefreshToken
		err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
		return t, err
	})

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrInvalidRefreshToken)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}
