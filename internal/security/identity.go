// Package security binds resolved identities to a single unit of work.
//
// Both transports share it: the HTTP gateway binds one identity per request
// and the realtime gateway binds one per inbound frame. Identities travel in a
// context.Context and are never stored in package state.
package security

import (
	"context"
)

// Identity is an authenticated principal. ID is nil when the identity was
// synthesized from token claims and has no backing record.
type Identity struct {
	ID       *int64
	Username string
	Email    string
}

// Name is the display name used to address per-identity destinations
func (i *Identity) Name() string {
	if i == nil {
		return ""
	}
	return i.Username
}

// Persisted reports whether the identity has a backing record
func (i *Identity) Persisted() bool {
	return i != nil && i.ID != nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity bound to ctx, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
