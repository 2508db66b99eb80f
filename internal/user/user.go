// Package user provides account registration, lookup, and login.
//
// The Store persists accounts in PostgreSQL; the Service layers the
// registration/login rules on top: uniqueness enforcement, password
// hashing at the codec boundary, and the uniform invalid-credentials
// behavior that avoids user enumeration.
package user

import (
	"time"

	"github.com/google/uuid"
)

// User is an account record.
//
// PasswordHash never leaves this package's persistence boundary: the
// json tag excludes it from every rendered representation, so the type
// itself is the sanitized view.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterParams carries the fields required to create an account.
// Password is plaintext here; the Service hashes it before persistence.
type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}
