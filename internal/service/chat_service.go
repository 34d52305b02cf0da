package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/notification"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// ChatService defines chat operations
type ChatService interface {
	// PushUserInfo sends the caller's profile, recipes and ratings to the chat service
	PushUserInfo(ctx context.Context, id *security.Identity) (*dto.UserInfoResponse, error)
	// HandleMessage answers one realtime chat message. The sender is the
	// identity bound to ctx; messages without one are dropped. The reply,
	// or a system error message, goes to the sender's private queue.
	HandleMessage(ctx context.Context, msg *dto.ChatMessage)
}

type chatService struct {
	users         repository.UserRepository
	recipes       repository.RecipeRepository
	satisfactions repository.SatisfactionRepository
	inference     inference.Client
	notifier      notification.Publisher
	log           *logger.Logger
}

// NewChatService creates a new ChatService
func NewChatService(
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	satisfactions repository.SatisfactionRepository,
	client inference.Client,
	notifier notification.Publisher,
	log *logger.Logger,
) ChatService {
	if log == nil {
		log = logger.Nop()
	}
	return &chatService{
		users:         users,
		recipes:       recipes,
		satisfactions: satisfactions,
		inference:     client,
		notifier:      notifier,
		log:           log,
	}
}

func (s *chatService) PushUserInfo(ctx context.Context, id *security.Identity) (*dto.UserInfoResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.chat.push_user_info")
	defer span.End()

	user, err := lookupUser(ctx, s.users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	recipes, err := s.recipes.ListByUser(ctx, user.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	ratings, err := s.satisfactions.ListByUser(ctx, user.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("recipes", len(recipes)), attribute.Int("satisfactions", len(ratings)))

	if err := s.inference.SendUserInfo(ctx, &inference.UserInfo{
		User:          user,
		Recipes:       recipes,
		Satisfactions: ratings,
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("send user info: %w", err)
	}

	return &dto.UserInfoResponse{Recipes: len(recipes), Satisfactions: len(ratings)}, nil
}

func (s *chatService) HandleMessage(ctx context.Context, msg *dto.ChatMessage) {
	ctx, span := telemetry.StartSpan(ctx, "service.chat.message")
	defer span.End()

	log := s.log.WithContext(ctx)

	id, ok := security.FromContext(ctx)
	if !ok {
		log.Warn("chat message from unauthenticated session dropped")
		return
	}
	username := id.Name()

	sessionID := strings.TrimSpace(msg.SessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	span.SetAttributes(attribute.String("username", username), attribute.String("session_id", sessionID))

	reply, err := s.inference.Chat(ctx, &inference.ChatRequest{
		Message:   msg.Message,
		Username:  username,
		SessionID: sessionID,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("chat request failed", zap.String("username", username), zap.Error(err))
		s.notifier.Publish(ctx, username, notification.UserQueue, &dto.ChatResponse{
			Username:  domain.SystemSender,
			Message:   "server error: " + err.Error(),
			SessionID: sessionID,
		})
		return
	}

	s.notifier.Publish(ctx, username, notification.UserQueue, chatResponse(reply, sessionID))
}
