package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error

	// DummyDigest returns a valid digest that matches no password.
	// Login verifies against it when the user lookup fails, so a missing user
	// and a wrong password cost the same time. Deliberate side-channel
	// mitigation, not dead code.
	DummyDigest() string
}

// Bcrypt password hasher
// Passwords are prehashed with sha256 to sidestep the bcrypt 72 byte input limit
type BcryptHasher struct {
	cost  int
	dummy string
}

func NewBcryptHasher() BcryptHasher {
	h := BcryptHasher{cost: bcrypt.DefaultCost}

	// Precompute the dummy at the same cost as real digests,
	// a cheaper digest would be distinguishable by timing
	sum := sha256.Sum256([]byte("authgate dummy digest, matches nothing"))
	dummy, err := bcrypt.GenerateFromPassword(sum[:], h.cost)
	if err != nil {
		// GenerateFromPassword fails only on invalid cost
		panic(err)
	}
	h.dummy = string(dummy)

	return h
}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], h.cost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

func (h BcryptHasher) DummyDigest() string {
	return h.dummy
}
