package auth

import "errors"

// Sentinel errors for token operations.
// Check with errors.Is().
var (
	// ErrInvalidToken indicates the token signature, structure, or expiry
	// failed verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSecret indicates the token service was constructed without
	// a signing secret.
	ErrMissingSecret = errors.New("missing signing secret")
)
