// Package token issues and validates the signed bearer tokens shared by the
// REST gateway and the realtime gateway.
package token

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Category distinguishes token lifetimes
type Category string

const (
	CategoryAccess  Category = "access"
	CategoryRefresh Category = "refresh"
)

// Claim names embedded in every token
const (
	ClaimCategory = "category"
	ClaimEmail    = "userEmail"
	ClaimUsername = "username"
	ClaimSubject  = "sub"
)

// minSecretBytes matches the HS256 key size requirement
const minSecretBytes = 32

var (
	ErrInvalidSecret       = errors.New("invalid token secret")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrUnsupportedCategory = errors.New("unsupported token category")
	ErrClaimNotFound       = errors.New("claim not found")
)

// Config holds token settings. Secret is base64 encoded.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Subject is the identity a token is issued for
type Subject struct {
	Username string
	Email    string
}

// Claims are the validated contents of a token
type Claims struct {
	Subject   string
	Category  Category
	Email     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Category string `json:"category"`
	Email    string `json:"userEmail"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Option configures a Service
type Option func(*Service)

// WithNowFunc replaces the clock used for issuing and validating
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIssuer sets the iss claim on issued tokens
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// Service signs and verifies HS256 tokens with a process-wide key
type Service struct {
	key    []byte
	ttl    map[Category]time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewService decodes the secret once. Errors here are startup errors.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: empty secret", ErrInvalidSecret)
	}
	key, err := base64.StdEncoding.DecodeString(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidSecret, minSecretBytes, len(key))
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token TTLs must be positive", ErrInvalidSecret)
	}

	s := &Service{
		key: key,
		ttl: map[Category]time.Duration{
			CategoryAccess:  cfg.AccessTTL,
			CategoryRefresh: cfg.RefreshTTL,
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	return s, nil
}

// TTL returns the lifetime of a category, zero for unknown categories
func (s *Service) TTL(category Category) time.Duration {
	return s.ttl[category]
}

// RefreshTTL is the refresh token lifetime, also used as the cookie max-age
func (s *Service) RefreshTTL() time.Duration {
	return s.ttl[CategoryRefresh]
}

// Issue signs a token for subject with the lifetime of category
func (s *Service) Issue(subject Subject, category Category) (string, error) {
	ttl, ok := s.ttl[category]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCategory, category)
	}

	now := s.now()
	claims := tokenClaims{
		Category: string(category),
		Email:    subject.Email,
		Username: subject.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate returns nil for a usable token, ErrTokenExpired when only the
// expiry failed, and ErrInvalidToken for everything else.
func (s *Service) Validate(raw string) error {
	_, err := s.Parse(raw)
	return err
}

// Parse validates raw and returns its claims
func (s *Service) Parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var tc tokenClaims
	_, err := s.parser.ParseWithClaims(raw, &tc, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	category := Category(tc.Category)
	if _, ok := s.ttl[category]; !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidToken, ErrUnsupportedCategory, tc.Category)
	}

	claims := &Claims{
		Subject:  tc.Subject,
		Category: category,
		Email:    tc.Email,
		Username: tc.Username,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

// Claim returns a single embedded claim by its wire name
func (s *Service) Claim(raw, name string) (any, error) {
	if _, err := s.Parse(raw); err != nil {
		return nil, err
	}

	mc := jwt.MapClaims{}
	if _, err := s.parser.ParseWithClaims(raw, mc, s.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	v, ok := mc[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, name)
	}
	return v, nil
}

func (s *Service) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.key, nil
}
