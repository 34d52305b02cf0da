package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// NutritionService defines nutrition operations
type NutritionService interface {
	// Get returns the nutrition of a recipe the caller owns, fetching it
	// from the inference service on first use
	Get(ctx context.Context, id *security.Identity, recipeID int64) (*dto.NutritionResponse, error)
}

type nutritionService struct {
	users     repository.UserRepository
	recipes   repository.RecipeRepository
	nutrition repository.NutritionRepository
	inference inference.Client
	events    events.Publisher
	log       *logger.Logger
}

// NewNutritionService creates a new NutritionService
func NewNutritionService(
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	nutrition repository.NutritionRepository,
	client inference.Client,
	pub events.Publisher,
	log *logger.Logger,
) NutritionService {
	if log == nil {
		log = logger.Nop()
	}
	return &nutritionService{
		users:     users,
		recipes:   recipes,
		nutrition: nutrition,
		inference: client,
		events:    pub,
		log:       log,
	}
}

func (s *nutritionService) Get(ctx context.Context, id *security.Identity, recipeID int64) (*dto.NutritionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.nutrition.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe_id", recipeID))

	if recipeID <= 0 {
		return nil, domain.ErrInvalidRecipeID
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
	if !recipe.OwnedBy(user.ID) {
		telemetry.RecordError(span, domain.ErrInvalidUser)
		return nil, domain.ErrInvalidUser
	}

	stored, err := s.nutrition.GetByRecipeID(ctx, recipeID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if stored != nil {
		span.SetAttributes(attribute.Bool("cached", true))
		return dto.NutritionFromDomain(stored), nil
	}

	estimate, err := s.inference.GetNutrition(ctx, recipeID)
	if err != nil {
		telemetry.RecordError(span, err)
		if inference.IsNotFound(err) {
			return nil, domain.ErrNutritionNotFound
		}
		return nil, fmt.Errorf("fetch nutrition %d: %w", recipeID, err)
	}

	n := &domain.Nutrition{
		RecipeID:     recipeID,
		Calories:     estimate.Calories,
		Carbohydrate: estimate.Carbohydrate,
		Protein:      estimate.Protein,
		Fat:          estimate.Fat,
		Sugar:        estimate.Sugar,
		Sodium:       estimate.Sodium,
		SaturatedFat: estimate.SaturatedFat,
		TransFat:     estimate.TransFat,
		Cholesterol:  estimate.Cholesterol,
	}
	if err := s.nutrition.Upsert(ctx, n); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvent(ctx, s.events, s.log, domain.Event{
		Type:     domain.EventNutritionSaved,
		Username: user.Username,
		UserID:   user.ID,
		RecipeID: recipeID,
	})
	return dto.NutritionFromDomain(n), nil
}
