// Package auth contains the credential primitives: bcrypt password hashing
// and HS256 token signing.
package auth

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = bcrypt.DefaultCost

var hashPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// PasswordHasher turns passwords into storable hashes and checks guesses
// against them.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// BcryptHasher is the bcrypt PasswordHasher.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: DefaultCost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", common.ErrEmptyPassword
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.NewValidationError("password must be at most 72 bytes")
		}
		return "", err
	}
	return string(b), nil
}

// Verify never fails loudly: a missing, malformed or non-matching hash all
// return false.
func (h *BcryptHasher) Verify(plain, hash string) bool {
	if plain == "" || !IsPasswordHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsPasswordHash reports whether s carries a bcrypt marker.
func IsPasswordHash(s string) bool {
	for _, p := range hashPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// EnsureHashed hashes value unless it already is a hash, so a stored
// password is never hashed twice.
func EnsureHashed(h PasswordHasher, value string) (string, error) {
	if IsPasswordHash(value) {
		return value, nil
	}
	return h.Hash(value)
}

// VerifyUser checks password against the hash stored for u.
func VerifyUser(h PasswordHasher, u *models.User, password string) bool {
	if u == nil {
		return false
	}
	return h.Verify(password, u.PasswordHash)
}
