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
	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/notification"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/storage"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// GenerateInput is a photo plus free-form cooking instructions
type GenerateInput struct {
	Instructions string
	Image        *inference.Image
}

// RecipeService defines recipe operations backed by the inference service
type RecipeService interface {
	// Generate creates and stores a recipe from a photo
	Generate(ctx context.Context, id *security.Identity, in *GenerateInput) (*dto.RecipeResponse, error)
	// Substitute stores a variant of a recipe with one ingredient replaced
	Substitute(ctx context.Context, id *security.Identity, req *dto.SubstituteIngredientRequest) (*dto.RecipeResponse, error)
	// Upload opens a chat session seeded with a photo
	Upload(ctx context.Context, id *security.Identity, in *GenerateInput) (*dto.UploadResponse, error)
	// Assistance fetches a recipe from the inference service and stores a copy for the caller
	Assistance(ctx context.Context, id *security.Identity, recipeID int64) (*dto.RecipeResponse, error)
	// List returns the caller's recipes, newest first
	List(ctx context.Context, id *security.Identity) ([]*dto.RecipeResponse, error)
}

// RecipeServiceDeps groups the collaborators of RecipeService
type RecipeServiceDeps struct {
	Users     repository.UserRepository
	Recipes   repository.RecipeRepository
	Inference inference.Client
	Images    storage.ImageStore
	Notifier  notification.Publisher
	Events    events.Publisher
	Log       *logger.Logger
}

type recipeService struct {
	RecipeServiceDeps
}

// NewRecipeService creates a new RecipeService
func NewRecipeService(deps RecipeServiceDeps) RecipeService {
	if deps.Images == nil {
		deps.Images = storage.NopStore{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.Nop{}
	}
	if deps.Events == nil {
		deps.Events = events.NewNoOpPublisher()
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	return &recipeService{RecipeServiceDeps: deps}
}

func (s *recipeService) Generate(ctx context.Context, id *security.Identity, in *GenerateInput) (*dto.RecipeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recipe.generate")
	defer span.End()

	if in == nil || in.Image == nil || len(in.Image.Data) == 0 {
		return nil, domain.ErrMissingImage
	}

	user, err := lookupUser(ctx, s.Users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user_id", user.ID))

	storedURL, err := s.Images.Put(ctx, user.Username, in.Image.Filename, in.Image.ContentType, in.Image.Data)
	if err != nil {
		// the recipe is still usable without a stored copy of the photo
		s.Log.WithContext(ctx).Warn("failed to store recipe image", zap.Error(err))
	}

	generated, err := s.Inference.GenerateRecipe(ctx, &inference.GenerateRequest{
		Instructions: in.Instructions,
		Username:     user.Username,
		SessionID:    uuid.New().String(),
		Image:        in.Image,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("generate recipe: %w", err)
	}

	recipe := recipeFromInference(generated, user.ID)
	if recipe.ImageURL == "" {
		recipe.ImageURL = storedURL
	}
	if err := s.Recipes.Create(ctx, recipe); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save recipe: %w", err)
	}

	s.Notifier.Publish(ctx, user.Username, notification.UserQueue, domain.NewSystemNotification(
		domain.NotificationRecipeGenerated,
		"New recipe generated: "+recipe.Name,
	))
	s.recipeSaved(ctx, user, recipe, "generate")

	return withSubstitution(dto.RecipeFromDomain(recipe), generated), nil
}

func (s *recipeService) Substitute(ctx context.Context, id *security.Identity, req *dto.SubstituteIngredientRequest) (*dto.RecipeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recipe.substitute")
	defer span.End()

	original := strings.TrimSpace(req.OriginalIngredient)
	substitute := strings.TrimSpace(req.SubstituteIngredient)
	if original == "" || substitute == "" {
		return nil, domain.ErrInvalidIngredient
	}

	user, err := lookupUser(ctx, s.Users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	recipeName := req.RecipeName
	if recipeName == "" && req.RecipeID > 0 {
		base, err := s.Recipes.GetByID(ctx, req.RecipeID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if base == nil {
			return nil, domain.ErrRecipeNotFound
		}
		if !base.OwnedBy(user.ID) {
			return nil, domain.ErrInvalidUser
		}
		recipeName = base.Name
	}
	span.SetAttributes(
		attribute.String("original", original),
		attribute.String("substitute", substitute),
	)

	generated, err := s.Inference.SubstituteIngredient(ctx, &inference.SubstituteRequest{
		Original:   original,
		Substitute: substitute,
		RecipeName: recipeName,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("substitute ingredient: %w", err)
	}

	recipe := recipeFromInference(generated, user.ID)
	if generated.SubstituteFailure {
		// nothing new to keep; the client shows the reason
		return withSubstitution(dto.RecipeFromDomain(recipe), generated), nil
	}

	if err := s.Recipes.Create(ctx, recipe); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save recipe: %w", err)
	}

	s.Notifier.Publish(ctx, user.Username, notification.UserQueue, domain.NewSystemNotification(
		domain.NotificationRecipeSubstituted,
		fmt.Sprintf("Recipe with %s→%s created: %s", original, substitute, recipe.Name),
	))
	s.recipeSaved(ctx, user, recipe, "substitute")

	return withSubstitution(dto.RecipeFromDomain(recipe), generated), nil
}

func (s *recipeService) Upload(ctx context.Context, id *security.Identity, in *GenerateInput) (*dto.UploadResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recipe.upload")
	defer span.End()

	if in == nil || in.Image == nil || len(in.Image.Data) == 0 {
		return nil, domain.ErrMissingImage
	}

	user, err := lookupUser(ctx, s.Users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sessionID := uuid.New().String()
	span.SetAttributes(attribute.String("session_id", sessionID))

	reply, err := s.Inference.Chat(ctx, &inference.ChatRequest{
		Message:   in.Instructions,
		Username:  user.Username,
		SessionID: sessionID,
		Image:     in.Image,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("start chat session: %w", err)
	}

	return &dto.UploadResponse{
		SessionID:       sessionID,
		InitialResponse: chatResponse(reply, sessionID),
		Success:         true,
	}, nil
}

func (s *recipeService) Assistance(ctx context.Context, id *security.Identity, recipeID int64) (*dto.RecipeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recipe.assistance")
	defer span.End()
	span.SetAttributes(attribute.Int64("recipe_id", recipeID))

	if recipeID <= 0 {
		return nil, domain.ErrInvalidRecipeID
	}

	user, err := lookupUser(ctx, s.Users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	fetched, err := s.Inference.GetRecipe(ctx, recipeID)
	if err != nil {
		telemetry.RecordError(span, err)
		if inference.IsNotFound(err) {
			return nil, domain.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("fetch recipe %d: %w", recipeID, err)
	}

	recipe := recipeFromInference(fetched, user.ID)
	if err := s.Recipes.Create(ctx, recipe); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save recipe: %w", err)
	}
	s.recipeSaved(ctx, user, recipe, "assistance")

	return dto.RecipeFromDomain(recipe), nil
}

func (s *recipeService) List(ctx context.Context, id *security.Identity) ([]*dto.RecipeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recipe.list")
	defer span.End()

	user, err := lookupUser(ctx, s.Users, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	recipes, err := s.Recipes.ListByUser(ctx, user.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	out := make([]*dto.RecipeResponse, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, dto.RecipeFromDomain(r))
	}
	return out, nil
}

func (s *recipeService) recipeSaved(ctx context.Context, user *domain.User, recipe *domain.Recipe, source string) {
	publishEvent(ctx, s.Events, s.Log, domain.Event{
		Type:       domain.EventRecipeSaved,
		Username:   user.Username,
		UserID:     user.ID,
		RecipeID:   recipe.ID,
		Attributes: map[string]any{"source": source, "name": recipe.Name},
	})
}

func recipeFromInference(r *inference.Recipe, userID int64) *domain.Recipe {
	recipe := &domain.Recipe{
		UserID:       userID,
		Name:         r.Name,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		Ingredients:  make([]domain.Ingredient, 0, len(r.Ingredients)),
		Instructions: make([]domain.Instruction, 0, len(r.Instructions)),
	}
	for i, in := range r.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, domain.Ingredient{
			Position: i + 1,
			Name:     in.Name,
			Amount:   in.Amount,
		})
	}
	for i, st := range r.Instructions {
		recipe.Instructions = append(recipe.Instructions, domain.Instruction{
			Step:        i + 1,
			Instruction: st.Instruction,
			CookingTime: st.CookingTime,
		})
	}
	return recipe
}

func withSubstitution(resp *dto.RecipeResponse, r *inference.Recipe) *dto.RecipeResponse {
	resp.SubstituteFailure = r.SubstituteFailure
	if info := r.SubstitutionInfo; info != nil {
		resp.SubstitutionInfo = &dto.SubstitutionInfo{
			OriginalIngredient:   info.OriginalIngredient,
			SubstituteIngredient: info.SubstituteIngredient,
			SimilarityScore:      info.SimilarityScore,
			EstimatedAmount:      info.EstimatedAmount,
			SubstitutionReason:   info.SubstitutionReason,
			CookingTips:          info.CookingTips,
		}
	}
	return resp
}

func chatResponse(r *inference.ChatReply, sessionID string) *dto.ChatResponse {
	return &dto.ChatResponse{
		Message:   r.Message,
		Username:  r.Username,
		ImageURL:  r.ImageURL,
		SessionID: sessionID,
	}
}
