// Package service holds the application use cases. Services are transport
// agnostic: handlers and the realtime router call them with the resolved
// security.Identity of the caller.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
)

// lookupUser finds the account behind an identity: by id when persisted,
// then by email, then by username
func lookupUser(ctx context.Context, users repository.UserRepository, id *security.Identity) (*domain.User, error) {
	if id == nil {
		return nil, domain.ErrUserNotFound
	}

	if id.Persisted() {
		user, err := users.GetByID(ctx, *id.ID)
		if err != nil {
			return nil, fmt.Errorf("get user %d: %w", *id.ID, err)
		}
		if user != nil {
			return user, nil
		}
	}

	if id.Email != "" {
		user, err := users.GetByEmail(ctx, id.Email)
		if err != nil {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		if user != nil {
			return user, nil
		}
	}

	if id.Username != "" {
		user, err := users.GetByUsername(ctx, id.Username)
		if err != nil {
			return nil, fmt.Errorf("get user by username: %w", err)
		}
		if user != nil {
			return user, nil
		}
	}

	if !id.Persisted() {
		return nil, fmt.Errorf("%w: %w", domain.ErrUserNotFound, domain.ErrIdentityNotPersisted)
	}
	return nil, domain.ErrUserNotFound
}

// publishEvent sends a domain event. Failures are logged, never returned.
func publishEvent(ctx context.Context, pub events.Publisher, log *logger.Logger, event domain.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		log.WithContext(ctx).Warn("failed to publish domain event",
			zap.String("event_type", event.Type),
			zap.String("username", event.Username),
			zap.Error(err),
		)
	}
}
