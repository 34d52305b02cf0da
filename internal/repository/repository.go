package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
)

// Lookups return (nil, nil) when no row matches.

// UserRepository persists accounts
type UserRepository interface {
	// Create inserts user and sets its ID. Duplicate emails return domain.ErrEmailExists.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *domain.User) error
}

// RecipeRepository persists recipes with their ingredients and instructions
type RecipeRepository interface {
	// Create inserts the recipe and its children in one transaction
	Create(ctx context.Context, recipe *domain.Recipe) error
	GetByID(ctx context.Context, id int64) (*domain.Recipe, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Recipe, error)
}

// NutritionRepository persists one nutrition record per recipe
type NutritionRepository interface {
	Upsert(ctx context.Context, nutrition *domain.Nutrition) error
	GetByRecipeID(ctx context.Context, recipeID int64) (*domain.Nutrition, error)
}

// SatisfactionRepository persists one rating per (user, recipe)
type SatisfactionRepository interface {
	Upsert(ctx context.Context, satisfaction *domain.Satisfaction) error
	ListByUser(ctx context.Context, userID int64) ([]*domain.Satisfaction, error)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
