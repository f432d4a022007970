// Package cryptox holds the password and token primitives used by the
// backend's auth flow.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch is returned when a password does not match its hash.
var ErrMismatch = errors.New("password mismatch")

// MaxPasswordLen is bcrypt's input limit; longer passwords are rejected
// rather than silently truncated.
const MaxPasswordLen = 72

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password []byte) ([]byte, error) {
	if len(password) > MaxPasswordLen {
		return nil, fmt.Errorf("password longer than %d bytes", MaxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword compares password against a bcrypt hash. Any failure,
// including a malformed hash, is reported as ErrMismatch.
func CheckPassword(hash, password []byte) error {
	if err := bcrypt.CompareHashAndPassword(hash, password); err != nil {
		return ErrMismatch
	}
	return nil
}

// dummyHash is compared against when the user does not exist so that a
// missing account costs the same time as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("encounterscribe"), bcrypt.DefaultCost)

// BurnPasswordCheck spends one bcrypt comparison and discards the result.
func BurnPasswordCheck(password []byte) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, password)
}

// NewRefreshToken returns an opaque random token.
func NewRefreshToken() string {
	return uuid.NewString()
}

// TokenDigest is the value stored for a refresh token: the database never
// holds the token itself.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Wipe zeroes b so a password does not linger in memory after use.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
