package security

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

const bearerPrefix = "Bearer "

var (
	ErrMissingToken       = errors.New("missing bearer token")
	ErrUnresolvedIdentity = errors.New("identity could not be resolved")
)

// TokenParser is the part of the token service the policies need
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// BearerToken extracts the credential from an Authorization header value
func BearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	return raw, raw != ""
}

// StrictBearerPolicy rejects any request whose bearer credential is missing,
// invalid, expired or unresolvable. Used by the HTTP gateway.
type StrictBearerPolicy struct {
	tokens TokenParser
	chain  Chain
}

func NewStrictBearerPolicy(tokens TokenParser, chain Chain) *StrictBearerPolicy {
	return &StrictBearerPolicy{tokens: tokens, chain: chain}
}

// Authenticate returns the identity for an Authorization header value.
// Errors wrap ErrMissingToken, token.ErrInvalidToken, token.ErrTokenExpired
// or ErrUnresolvedIdentity.
func (p *StrictBearerPolicy) Authenticate(ctx context.Context, header string) (*Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingToken
	}

	claims, err := p.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}

	id, err := p.chain.Resolve(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresolvedIdentity, err)
	}
	if id == nil {
		return nil, ErrUnresolvedIdentity
	}
	return id, nil
}

// LenientBearerPolicy never fails: problems are logged and the caller
// continues without an identity. Used by the realtime gateway so a late or
// stale token degrades a connection to anonymous instead of closing it.
type LenientBearerPolicy struct {
	strict *StrictBearerPolicy
	log    *logger.Logger
}

func NewLenientBearerPolicy(tokens TokenParser, chain Chain, log *logger.Logger) *LenientBearerPolicy {
	if log == nil {
		log = logger.Nop()
	}
	return &LenientBearerPolicy{
		strict: NewStrictBearerPolicy(tokens, chain),
		log:    log,
	}
}

// Authenticate returns the identity for header, or nil
func (p *LenientBearerPolicy) Authenticate(ctx context.Context, header string) *Identity {
	id, err := p.strict.Authenticate(ctx, header)
	switch {
	case err == nil:
		return id
	case errors.Is(err, ErrMissingToken):
		p.log.Debug("no bearer token presented")
	case errors.Is(err, token.ErrTokenExpired):
		p.log.Warn("bearer token expired, continuing anonymous")
	default:
		p.log.Warn("bearer token rejected, continuing anonymous", zap.Error(err))
	}
	return nil
}
