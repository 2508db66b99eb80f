package user

import "errors"

// Sentinel errors for account operations.
// Check with errors.Is().
var (
	// ErrNotFound indicates no account matches the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicate indicates an account with the same username or email
	// already exists.
	ErrDuplicate = errors.New("user already exists")

	// ErrInvalidCredentials covers both unknown-account and wrong-password
	// logins. The two cases share one error to avoid user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDeactivated indicates correct credentials on an account with
	// IsActive=false.
	ErrDeactivated = errors.New("account is deactivated")
)
