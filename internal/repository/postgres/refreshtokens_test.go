package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/models"
	"github.com/msavelyev/authgate/internal/testutil"
)

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	newToken := func(t *testing.T, tx pgx.Tx, hash string) models.RefreshToken {
		t.Helper()

		users := &UserRepo{db: tx}
		user, err := users.CreateUser(t.Context(), uuid.NewString()+"@repo.test", "digest")
		require.NoError(t, err)

		now := time.Now().UTC().Truncate(time.Microsecond)
		return models.RefreshToken{
			ID:        uuid.New(),
			UserID:    user.ID,
			TokenHash: hash,
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		}
	}

	t.Run("save and get live by hash", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-live")

			require.NoError(t, repo.Save(t.Context(), token))

			got, err := repo.GetLiveByHash(t.Context(), "digest-live")
			require.NoError(t, err)
			assert.Equal(t, token.ID, got.ID)
			assert.Equal(t, token.UserID, got.UserID)
			assert.Nil(t, got.RevokedAt)

			_, err = repo.GetLiveByHash(t.Context(), "no-such-digest")
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		})
	})

	t.Run("save with duplicate hash fails", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			first := newToken(t, tx, "digest-dup")
			second := newToken(t, tx, "digest-dup")

			require.NoError(t, repo.Save(t.Context(), first))
			require.Error(t, repo.Save(t.Context(), second))
		})
	})

	t.Run("get live excludes revoked rows", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-revoked")

			require.NoError(t, repo.Save(t.Context(), token))
			require.NoError(t, repo.MarkRevoked(t.Context(), token.ID, time.Now()))

			_, err := repo.GetLiveByHash(t.Context(), "digest-revoked")
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)

			_, err = repo.GetLiveByHashForUpdate(t.Context(), "digest-revoked")
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		})
	})

	t.Run("get live returns expired rows", func(t *testing.T) {
		// Expiry is the caller's decision, the repo only filters on revocation
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-expired")
			token.ExpiresAt = token.CreatedAt.Add(-time.Hour)

			require.NoError(t, repo.Save(t.Context(), token))

			got, err := repo.GetLiveByHash(t.Context(), "digest-expired")
			require.NoError(t, err)
			assert.False(t, got.Live(time.Now()))
		})
	})

	t.Run("mark revoked is single shot", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-single-shot")

			require.NoError(t, repo.Save(t.Context(), token))

			require.NoError(t, repo.MarkRevoked(t.Context(), token.ID, time.Now()))
			err := repo.MarkRevoked(t.Context(), token.ID, time.Now())
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken, "second revoke must not win")

			err = repo.MarkRevoked(t.Context(), uuid.New(), time.Now())
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		})
	})

	t.Run("revoke by hash is idempotent", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-by-hash")

			require.NoError(t, repo.Save(t.Context(), token))

			revoked, err := repo.RevokeByHash(t.Context(), "digest-by-hash", time.Now())
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = repo.RevokeByHash(t.Context(), "digest-by-hash", time.Now())
			require.NoError(t, err)
			assert.False(t, revoked, "already revoked row is untouched")

			revoked, err = repo.RevokeByHash(t.Context(), "no-such-digest", time.Now())
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	})

	t.Run("deleting a user cascades to tokens", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &RefreshTokenRepo{db: tx}
			token := newToken(t, tx, "digest-cascade")

			require.NoError(t, repo.Save(t.Context(), token))

			_, err := tx.Exec(t.Context(), "DELETE FROM users WHERE id = $1", token.UserID)
			require.NoError(t, err)

			_, err = repo.GetLiveByHash(t.Context(), "digest-cascade")
			require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
		})
	})
}
