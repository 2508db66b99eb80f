// Package auth provides credential hashing and identity token issuance.
//
// Two small components live here:
//   - PasswordHasher: one-way bcrypt hashing and verification of passwords
//   - TokenService: issuing and verifying signed, time-limited identity tokens
//
// Both are constructed from explicit configuration rather than ambient
// process state, so tests can run with fixed secrets and expiries.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the cost factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher performs one-way password hashing with bcrypt.
//
// The codec boundary: plaintext passwords enter here and only salted
// digests leave. Nothing in this type logs or stores plaintext.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Costs outside bcrypt's supported range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted one-way digest of plaintext. Each call produces a
// different digest for the same input.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext is the input that produced digest.
// Malformed digests return false rather than an error.
func (h *PasswordHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
