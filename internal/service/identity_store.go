package service

import (
	"context"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
)

type userIdentityStore struct {
	users repository.UserRepository
}

// NewIdentityStore exposes the user repository to the bearer policies
func NewIdentityStore(users repository.UserRepository) security.IdentityStore {
	return &userIdentityStore{users: users}
}

func (s *userIdentityStore) FindIdentityByEmail(ctx context.Context, email string) (*security.Identity, error) {
	user, err := s.users.GetByEmail(ctx, email)
	return project(user, err)
}

func (s *userIdentityStore) FindIdentityByUsername(ctx context.Context, username string) (*security.Identity, error) {
	user, err := s.users.GetByUsername(ctx, username)
	return project(user, err)
}

func project(user *domain.User, err error) (*security.Identity, error) {
	if err != nil || user == nil {
		return nil, err
	}
	return user.Identity(), nil
}
