package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher()

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt digest is 60 letters long")
		require.Equal(t, "$2a$", got[:4], "bcrypt digest should have prefix '$2a$'")
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "password")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.Error(t, err)
	})

	t.Run("long passwords are not truncated", func(t *testing.T) {
		// bcrypt alone ignores everything after 72 bytes, the sha256 prehash must not
		long := make([]byte, 100)
		for i := range long {
			long[i] = 'a'
		}

		hash, err := h.Hash(string(long))
		require.NoError(t, err)

		err = h.Compare(hash, string(long[:90]))
		require.Error(t, err, "passwords differing after byte 72 should not match")
	})

	t.Run("dummy digest", func(t *testing.T) {
		dummy := h.DummyDigest()

		require.Len(t, dummy, 60, "dummy should be a well formed bcrypt digest")

		err := h.Compare(dummy, "any password at all")
		require.Error(t, err, "dummy digest should match nothing")
		require.NotEmpty(t, dummy)
		require.Equal(t, dummy, h.DummyDigest(), "dummy should be stable for the hasher")
	})
}
