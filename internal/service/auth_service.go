package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// ErrLoginTimeout is returned when verification outlives the login timeout
var ErrLoginTimeout = errors.New("login timed out")

// TokenIssuer is the part of the token service login needs
type TokenIssuer interface {
	Issue(subject token.Subject, category token.Category) (string, error)
	RefreshTTL() time.Duration
}

// AuthServiceConfig holds configuration for AuthService
type AuthServiceConfig struct {
	LoginTimeout time.Duration
}

// LoginResult is a successful login
type LoginResult struct {
	Username     string
	AccessToken  string
	RefreshToken string
	RefreshTTL   time.Duration
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	// Login exchanges an email and password for a token pair
	Login(ctx context.Context, req *dto.LoginRequest) (*LoginResult, error)
}

type authService struct {
	users    repository.UserRepository
	verifier CredentialVerifier
	tokens   TokenIssuer
	config   *AuthServiceConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users repository.UserRepository,
	verifier CredentialVerifier,
	tokens TokenIssuer,
	config *AuthServiceConfig,
) AuthService {
	if config == nil {
		config = &AuthServiceConfig{}
	}
	if config.LoginTimeout <= 0 {
		config.LoginTimeout = 5 * time.Second
	}
	return &authService{
		users:    users,
		verifier: verifier,
		tokens:   tokens,
		config:   config,
	}
}

// Login maps the email to its username, verifies the pair and issues an
// access and a refresh token. Unknown emails, unknown usernames and wrong
// passwords all return domain.ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("email", req.Email))

	ctx, cancel := context.WithTimeout(ctx, s.config.LoginTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("lookup email: %w", err))
	}
	if user == nil {
		span.SetStatus(codes.Error, "unknown email")
		return nil, domain.ErrInvalidCredentials
	}

	verified, err := s.verifier.Verify(ctx, user.Username, req.Password)
	if err != nil {
		return nil, s.fail(ctx, span, err)
	}

	subject := token.Subject{Username: verified.Username, Email: verified.Email}
	access, err := s.tokens.Issue(subject, token.CategoryAccess)
	if err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("issue access token: %w", err))
	}
	refresh, err := s.tokens.Issue(subject, token.CategoryRefresh)
	if err != nil {
		return nil, s.fail(ctx, span, fmt.Errorf("issue refresh token: %w", err))
	}

	span.SetAttributes(attribute.String("username", verified.Username))
	return &LoginResult{
		Username:     verified.Username,
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshTTL:   s.tokens.RefreshTTL(),
	}, nil
}

func (s *authService) fail(ctx context.Context, span trace.Span, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrLoginTimeout, err)
	}
	telemetry.RecordError(span, err)
	return err
}
