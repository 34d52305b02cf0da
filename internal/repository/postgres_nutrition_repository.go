package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
)

// PostgresNutritionRepository implements NutritionRepository using PostgreSQL
type PostgresNutritionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresNutritionRepository creates a new PostgresNutritionRepository
func NewPostgresNutritionRepository(pool *pgxpool.Pool) *PostgresNutritionRepository {
	return &PostgresNutritionRepository{pool: pool}
}

// Upsert replaces the recipe's nutrition estimate
func (r *PostgresNutritionRepository) Upsert(ctx context.Context, n *domain.Nutrition) error {
	n.UpdatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO nutrition (recipe_id, calories, carbohydrate, protein, fat, sugar, sodium,
		                       saturated_fat, trans_fat, cholesterol, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (recipe_id) DO UPDATE SET
			calories = EXCLUDED.calories,
			carbohydrate = EXCLUDED.carbohydrate,
			protein = EXCLUDED.protein,
			fat = EXCLUDED.fat,
			sugar = EXCLUDED.sugar,
			sodium = EXCLUDED.sodium,
			saturated_fat = EXCLUDED.saturated_fat,
			trans_fat = EXCLUDED.trans_fat,
			cholesterol = EXCLUDED.cholesterol,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		n.RecipeID,
		n.Calories,
		n.Carbohydrate,
		n.Protein,
		n.Fat,
		n.Sugar,
		n.Sodium,
		n.SaturatedFat,
		n.TransFat,
		n.Cholesterol,
		n.UpdatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("upsert nutrition: %w", err)
	}
	return nil
}

// GetByRecipeID retrieves the recipe's nutrition estimate
func (r *PostgresNutritionRepository) GetByRecipeID(ctx context.Context, recipeID int64) (*domain.Nutrition, error) {
	var n domain.Nutrition
	err := database.Get(ctx, r.pool, &n, `
		SELECT id, recipe_id, calories, carbohydrate, protein, fat, sugar, sodium,
		       saturated_fat, trans_fat, cholesterol, updated_at
		FROM nutrition
		WHERE recipe_id = $1
	`, recipeID)
	if err != nil {
		if database.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}
