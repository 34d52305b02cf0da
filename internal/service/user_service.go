package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// UserService defines registration and profile operations
type UserService interface {
	// Register creates an account. Duplicate emails return domain.ErrEmailExists.
	Register(ctx context.Context, req *dto.RegisterRequest) (*domain.User, error)
	// GetProfile returns the caller's account
	GetProfile(ctx context.Context, id *security.Identity) (*domain.User, error)
	// UpdateProfile replaces the caller's profile. An empty password keeps the current one.
	UpdateProfile(ctx context.Context, id *security.Identity, req *dto.MypageRequest) (*domain.User, error)
}

type userService struct {
	users      repository.UserRepository
	events     events.Publisher
	log        *logger.Logger
	bcryptCost int
}

// NewUserService creates a new UserService
func NewUserService(users repository.UserRepository, pub events.Publisher, log *logger.Logger, bcryptCost int) UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logger.Nop()
	}
	return &userService{users: users, events: pub, log: log, bcryptCost: bcryptCost}
}

func (s *userService) Register(ctx context.Context, req *dto.RegisterRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.register")
	defer span.End()

	email := strings.TrimSpace(strings.ToLower(req.Email))
	span.SetAttributes(attribute.String("email", email))

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		span.SetStatus(codes.Error, "email already registered")
		return nil, domain.ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: string(hash),
		Age:          req.Age,
		Height:       req.Height,
		Weight:       req.Weight,
		Habit:        req.Habit,
		Preference:   req.Preference,
	}
	// the unique index still catches a concurrent registration
	if err := s.users.Create(ctx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvent(ctx, s.events, s.log, domain.Event{
		Type:     domain.EventUserRegistered,
		Username: user.Username,
		UserID:   user.ID,
	})
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, id *security.Identity) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.get_profile")
	defer span.End()

	user, err := lookupUser(ctx, s.users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id *security.Identity, req *dto.MypageRequest) (*domain.User, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.user.update_profile")
	defer span.End()

	user, err := lookupUser(ctx, s.users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	user.Username = strings.TrimSpace(req.Username)
	user.Age = req.Age
	user.Height = req.Height
	user.Weight = req.Weight
	user.Habit = req.Habit
	user.Preference = req.Preference
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.users.Update(ctx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return user, nil
}
