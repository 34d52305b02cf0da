package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
)

// CredentialVerifier checks a username and password pair
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*domain.User, error)
}

type passwordVerifier struct {
	users repository.UserRepository
}

// NewPasswordVerifier verifies against bcrypt hashes stored with the account
func NewPasswordVerifier(users repository.UserRepository) CredentialVerifier {
	return &passwordVerifier{users: users}
}

// Verify returns domain.ErrInvalidCredentials for an unknown username or
// a wrong password alike
func (v *passwordVerifier) Verify(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}
