package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/security"
)

func TestUserService_Register(t *testing.T) {
	users := newMockUserRepository()
	ev := &recordingEvents{}
	svc := NewUserService(users, ev, nil, bcrypt.MinCost)

	user, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com ",
		Password: "secret",
		Age:      30,
		Habit:    "vegan",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret")))

	require.Len(t, ev.events, 1)
	assert.Equal(t, domain.EventUserRegistered, ev.events[0].Type)

	_, err = svc.Register(context.Background(), &dto.RegisterRequest{Username: "other", Email: "alice@example.com", Password: "pw12"})
	assert.ErrorIs(t, err, domain.ErrEmailExists)
}

func TestUserService_GetProfile(t *testing.T) {
	alice := &domain.User{Username: "alice", Email: "alice@example.com"}
	users := newMockUserRepository(alice)
	svc := NewUserService(users, nil, nil, bcrypt.MinCost)

	t.Run("persisted identity", func(t *testing.T) {
		user, err := svc.GetProfile(context.Background(), persisted(alice))
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	})

	t.Run("email first", func(t *testing.T) {
		user, err := svc.GetProfile(context.Background(), &security.Identity{Username: "stale", Email: "alice@example.com"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)
	})

	t.Run("then username", func(t *testing.T) {
		user, err := svc.GetProfile(context.Background(), &security.Identity{Username: "alice", Email: "old@example.com"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)
	})

	t.Run("synthesized identity", func(t *testing.T) {
		_, err := svc.GetProfile(context.Background(), &security.Identity{Username: "ghost", Email: "ghost@example.com"})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
		assert.ErrorIs(t, err, domain.ErrIdentityNotPersisted)
	})

	t.Run("nil identity", func(t *testing.T) {
		_, err := svc.GetProfile(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	alice := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: hashPassword("old")}
	users := newMockUserRepository(alice)
	svc := NewUserService(users, nil, nil, bcrypt.MinCost)

	user, err := svc.UpdateProfile(context.Background(), persisted(alice), &dto.MypageRequest{
		Username: "alice2",
		Weight:   60,
		Habit:    "runner",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", user.Username)
	assert.Equal(t, 60, user.Weight)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("old")), "empty password keeps the current one")

	user, err = svc.UpdateProfile(context.Background(), persisted(alice), &dto.MypageRequest{Username: "alice2", Password: "new"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("new")))

	stored, _ := users.GetByID(context.Background(), alice.ID)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)

	_, err = svc.UpdateProfile(context.Background(), &security.Identity{Username: "ghost"}, &dto.MypageRequest{Username: "x"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
