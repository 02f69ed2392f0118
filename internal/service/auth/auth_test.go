package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msavelyev/authgate/internal/apperrors"
	"github.com/msavelyev/authgate/internal/repository/postgres"
	"github.com/msavelyev/authgate/internal/testutil"
)

const strongPassword = "Abc12345!"

// countingHasher wraps the real hasher and records what Compare was called with,
// so the dummy-digest discipline is testable without measuring wall clock time
type countingHasher struct {
	BcryptHasher
	compares []string
}

func (h *countingHasher) Compare(hashedPassword string, password string) error {
	h.compares = append(h.compares, hashedPassword)
	return h.BcryptHasher.Compare(hashedPassword, password)
}

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)

	newService := func(t *testing.T) *Service {
		t.Helper()
		s, err := NewService(Config{
			SecretKey:       "0123456789abcdef0123456789abcdef",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		}, storage)
		require.NoError(t, err)
		return s
	}

	uniqueEmail := func() string {
		return fmt.Sprintf("%s@svc.test", uuid.NewString())
	}

	t.Run("NewService requires storage and a strong key", func(t *testing.T) {
		_, err := NewService(Config{SecretKey: "0123456789abcdef0123456789abcdef"}, nil)
		require.Error(t, err)

		_, err = NewService(Config{SecretKey: "short"}, storage)
		require.Error(t, err)
	})

	t.Run("register then login", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		registered, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		assert.Equal(t, email, registered.Email)
		assert.True(t, registered.IsActive)

		user, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID, "login should return the registered identity")
		assert.NotEmpty(t, pair.Access.Value)
		assert.NotEmpty(t, pair.Refresh.Value)
	})

	t.Run("register normalizes email", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		_, err := s.Register(t.Context(), "  "+email+" ", strongPassword)
		require.NoError(t, err)

		_, _, err = s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err, "login with the normalized form should work")
	})

	t.Run("register rejects weak password", func(t *testing.T) {
		s := newService(t)

		_, err := s.Register(t.Context(), uniqueEmail(), "weak")
		require.ErrorIs(t, err, apperrors.ErrWeakPassword)
	})

	t.Run("register rejects taken email", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		_, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)

		_, err = s.Register(t.Context(), email, strongPassword)
		require.ErrorIs(t, err, apperrors.ErrEmailTaken)
	})

	t.Run("login failures are indistinguishable", func(t *testing.T) {
		hasher := &countingHasher{BcryptHasher: NewBcryptHasher()}
		s, err := NewService(Config{
			SecretKey: "0123456789abcdef0123456789abcdef",
			Hasher:    hasher,
		}, storage)
		require.NoError(t, err)

		email := uniqueEmail()
		_, err = s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)

		_, _, wrongPassErr := s.Login(t.Context(), email, "Wrong12345!")
		_, _, noUserErr := s.Login(t.Context(), uniqueEmail(), "Wrong12345!")

		require.ErrorIs(t, wrongPassErr, apperrors.ErrInvalidCredentials)
		require.ErrorIs(t, noUserErr, apperrors.ErrInvalidCredentials)
		assert.Equal(t, wrongPassErr, noUserErr, "same error kind for both failures")

		// Both attempts must have paid the full hash comparison cost
		require.Len(t, hasher.compares, 2)
		assert.NotEqual(t, hasher.DummyDigest(), hasher.compares[0], "existing user compares against the real digest")
		assert.Equal(t, hasher.DummyDigest(), hasher.compares[1], "missing user compares against the dummy digest")
	})

	t.Run("disabled account rejected after credentials check", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		user, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)

		_, err = pg.Pool.Exec(t.Context(), "UPDATE users SET is_active = FALSE WHERE id = $1", user.ID)
		require.NoError(t, err)

		_, _, err = s.Login(t.Context(), email, strongPassword)
		require.ErrorIs(t, err, apperrors.ErrAccountDisabled)

		// Wrong password on a disabled account must not reveal the account state
		_, _, err = s.Login(t.Context(), email, "Wrong12345!")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("refresh rotates the pair", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		registered, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		_, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)

		user, next, err := s.Refresh(t.Context(), pair.Refresh.Value)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)
		assert.NotEqual(t, pair.Refresh.Value, next.Refresh.Value)
		assert.NotEmpty(t, next.Access.Value)

		// The old refresh token is spent
		_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	})

	t.Run("refresh with garbage", func(t *testing.T) {
		s := newService(t)

		_, _, err := s.Refresh(t.Context(), "not-a-refresh-token")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		_, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		_, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)

		require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value))
		require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value))

		_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("resolve session", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		registered, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		_, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)

		user, err := s.ResolveSession(t.Context(), pair.Access.Value)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, user.ID)

		_, err = s.ResolveSession(t.Context(), "garbage")
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("resolve session after logout still works until expiry", func(t *testing.T) {
		// Access tokens are stateless on purpose: logout kills the refresh
		// token but an already issued access token lives out its short TTL
		s := newService(t)
		email := uniqueEmail()

		_, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		_, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)

		require.NoError(t, s.Logout(t.Context(), pair.Refresh.Value))

		_, err = s.ResolveSession(t.Context(), pair.Access.Value)
		require.NoError(t, err)
	})

	t.Run("resolve session rejects disabled user", func(t *testing.T) {
		s := newService(t)
		email := uniqueEmail()

		user, err := s.Register(t.Context(), email, strongPassword)
		require.NoError(t, err)
		_, pair, err := s.Login(t.Context(), email, strongPassword)
		require.NoError(t, err)

		_, err = pg.Pool.Exec(t.Context(), "UPDATE users SET is_active = FALSE WHERE id = $1", user.ID)
		require.NoError(t, err)

		_, err = s.ResolveSession(t.Context(), pair.Access.Value)
		require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})
}
