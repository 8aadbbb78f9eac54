package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/imgshare/apiserver/internal/store"
	"github.com/imgshare/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost factor for new password hashes.
const PasswordCost = 10

// ErrInvalidPassword is returned by Register for a password bcrypt cannot
// hash, such as one longer than 72 bytes.
var ErrInvalidPassword = errors.New("invalid password")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
	ListByUsernames(ctx context.Context, usernames []string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// CredentialService registers users and verifies their passwords.
// It applies no rate limiting, lockout or password policy.
type CredentialService struct {
	repo UserRepository
	cost int
}

// NewCredentialService constructs a CredentialService over repo.
func NewCredentialService(repo UserRepository) *CredentialService {
	return &CredentialService{repo: repo, cost: PasswordCost}
}

// Register stores a new user with a bcrypt hash of password. It reports false
// when the username is already taken.
func (s *CredentialService) Register(ctx context.Context, username, password string) (bool, error) {
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return false, fmt.Errorf("%w: longer than 72 bytes", ErrInvalidPassword)
		}
		return false, err
	}

	_, err = s.repo.Create(ctx, types.User{
		Username:     username,
		Name:         username,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same name.
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Verify reports whether password matches the stored hash for username.
// Unknown usernames verify as false.
func (s *CredentialService) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}
