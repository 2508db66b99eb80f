package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ternchat/tern/internal/auth"
)

// Repository defines the persistence operations Service needs.
// Interfaces are defined by the consumer; *Store satisfies this.
type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	FindByLogin(ctx context.Context, login string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Service implements account registration, login, and profile lookup.
type Service struct {
	repo   Repository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewService creates an account service.
// A nil logger falls back to slog.Default().
func NewService(repo Repository, hasher *auth.PasswordHasher, tokens *auth.TokenService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, tokens: tokens, logger: logger}
}

// Register creates a new account and issues an identity token for it.
// Returns ErrDuplicate if the username or email is already taken.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*User, string, error) {
	exists, err := s.repo.ExistsByUsernameOrEmail(ctx, p.Username, p.Email)
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, "", ErrDuplicate
	}

	digest, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}

	u, err := s.repo.Create(ctx, &User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: digest,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
	})
	if err != nil {
		// The pre-check races with concurrent registrations; the unique
		// constraint is the authority.
		return nil, "", fmt.Errorf("register: %w", err)
	}

	token, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, "", fmt.Errorf("register: %w", err)
	}

	s.logger.Info("user registered", "id", u.ID, "username", u.Username)
	return u, token, nil
}

// Login verifies credentials and issues an identity token.
// login may be a username or an email address.
//
// Unknown accounts and wrong passwords both return ErrInvalidCredentials;
// a correct password on a deactivated account returns ErrDeactivated.
func (s *Service) Login(ctx context.Context, login, password string) (*User, string, error) {
	u, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("login: %w", err)
	}

	if !u.IsActive {
		return nil, "", ErrDeactivated
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}

	s.logger.Info("user logged in", "id", u.ID)
	return u, token, nil
}

// Profile fetches an account by ID. Returns ErrNotFound if absent.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
