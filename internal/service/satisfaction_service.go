package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// SatisfactionService defines rating operations
type SatisfactionService interface {
	// Rate stores the caller's rating of a recipe, replacing a previous one
	Rate(ctx context.Context, id *security.Identity, recipeID int64, req *dto.SatisfactionRequest) (*dto.SatisfactionResponse, error)
}

type satisfactionService struct {
	users         repository.UserRepository
	recipes       repository.RecipeRepository
	satisfactions repository.SatisfactionRepository
	events        events.Publisher
	log           *logger.Logger
}

// NewSatisfactionService creates a new SatisfactionService
func NewSatisfactionService(
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	satisfactions repository.SatisfactionRepository,
	pub events.Publisher,
	log *logger.Logger,
) SatisfactionService {
	if log == nil {
		log = logger.Nop()
	}
	return &satisfactionService{
		users:         users,
		recipes:       recipes,
		satisfactions: satisfactions,
		events:        pub,
		log:           log,
	}
}

func (s *satisfactionService) Rate(ctx context.Context, id *security.Identity, recipeID int64, req *dto.SatisfactionRequest) (*dto.SatisfactionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.satisfaction.rate")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe_id", recipeID), attribute.Int("rate", req.Rate))

	if recipeID <= 0 {
		return nil, domain.ErrInvalidRecipeID
	}
	if !domain.ValidRate(req.Rate) {
		return nil, domain.ErrInvalidRate
	}

	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if recipe == nil {
		return nil, domain.ErrRecipeNotFound
	}

	user, err := lookupUser(ctx, s.users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	rating := &domain.Satisfaction{
		UserID:   user.ID,
		RecipeID: recipe.ID,
		Rate:     req.Rate,
		Comment:  strings.TrimSpace(req.Comment),
	}
	if err := s.satisfactions.Upsert(ctx, rating); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvent(ctx, s.events, s.log, domain.Event{
		Type:       domain.EventSatisfactionRated,
		Username:   user.Username,
		UserID:     user.ID,
		RecipeID:   recipe.ID,
		Attributes: map[string]any{"rate": rating.Rate},
	})

	return &dto.SatisfactionResponse{
		RecipeID: rating.RecipeID,
		Rate:     rating.Rate,
		Comment:  rating.Comment,
	}, nil
}
