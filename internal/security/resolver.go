package security

import (
	"context"
	"fmt"

	"github.com/realqkqk123fr/temp-backend/internal/token"
)

// IdentityStore looks up persisted identities. Both lookups return
// (nil, nil) when no record matches.
type IdentityStore interface {
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	FindIdentityByUsername(ctx context.Context, username string) (*Identity, error)
}

// ResolverFunc maps validated claims to an identity. A nil identity with a
// nil error means "not mine, try the next resolver".
type ResolverFunc func(ctx context.Context, claims *token.Claims) (*Identity, error)

// Chain tries resolvers in order; the first non-nil identity wins
type Chain []ResolverFunc

// Resolve runs the chain. It returns (nil, nil) when every resolver passes.
func (c Chain) Resolve(ctx context.Context, claims *token.Claims) (*Identity, error) {
	for _, resolve := range c {
		id, err := resolve(ctx, claims)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, nil
}

// ByEmail resolves through the embedded email claim
func ByEmail(store IdentityStore) ResolverFunc {
	return func(ctx context.Context, claims *token.Claims) (*Identity, error) {
		if claims.Email == "" {
			return nil, nil
		}
		id, err := store.FindIdentityByEmail(ctx, claims.Email)
		if err != nil {
			return nil, fmt.Errorf("resolve by email: %w", err)
		}
		return id, nil
	}
}

// ByUsername resolves through the username claim, falling back to the subject
func ByUsername(store IdentityStore) ResolverFunc {
	return func(ctx context.Context, claims *token.Claims) (*Identity, error) {
		username := claims.Username
		if username == "" {
			username = claims.Subject
		}
		if username == "" {
			return nil, nil
		}
		id, err := store.FindIdentityByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("resolve by username: %w", err)
		}
		return id, nil
	}
}

// Synthesize builds an unpersisted identity from the claims alone. Callers
// holding a valid token for an account that no longer exists still pass the
// gateway; handlers needing a record check Identity.Persisted.
func Synthesize() ResolverFunc {
	return func(_ context.Context, claims *token.Claims) (*Identity, error) {
		username := claims.Username
		if username == "" {
			username = claims.Subject
		}
		return &Identity{Username: username, Email: claims.Email}, nil
	}
}

// DefaultChain is ByEmail, then ByUsername, then Synthesize
func DefaultChain(store IdentityStore) Chain {
	return Chain{ByEmail(store), ByUsername(store), Synthesize()}
}
