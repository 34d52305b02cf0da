package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
)

// PostgresRecipeRepository implements RecipeRepository using PostgreSQL
type PostgresRecipeRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRecipeRepository creates a new PostgresRecipeRepository
func NewPostgresRecipeRepository(pool *pgxpool.Pool) *PostgresRecipeRepository {
	return &PostgresRecipeRepository{pool: pool}
}

// Create inserts the recipe, then its ingredients and instructions in order
func (r *PostgresRecipeRepository) Create(ctx context.Context, recipe *domain.Recipe) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		recipe.CreatedAt = time.Now()
		err := tx.QueryRow(ctx, `
			INSERT INTO recipes (user_id, name, description, image_url, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, recipe.UserID, recipe.Name, recipe.Description, recipe.ImageURL, recipe.CreatedAt).Scan(&recipe.ID)
		if err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range recipe.Ingredients {
			in := &recipe.Ingredients[i]
			in.RecipeID, in.Position = recipe.ID, i+1
			batch.Queue(`INSERT INTO ingredients (recipe_id, position, name, amount) VALUES ($1, $2, $3, $4)`,
				in.RecipeID, in.Position, in.Name, in.Amount)
		}
		for i := range recipe.Instructions {
			st := &recipe.Instructions[i]
			st.RecipeID, st.Step = recipe.ID, i+1
			batch.Queue(`INSERT INTO instructions (recipe_id, step, instruction, cooking_time) VALUES ($1, $2, $3, $4)`,
				st.RecipeID, st.Step, st.Instruction, st.CookingTime)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert recipe children: %w", err)
		}
		return nil
	})
}

// GetByID loads a recipe with its children
func (r *PostgresRecipeRepository) GetByID(ctx context.Context, id int64) (*domain.Recipe, error) {
	var recipe domain.Recipe
	err := database.Get(ctx, r.pool, &recipe,
		`SELECT id, user_id, name, description, image_url, created_at FROM recipes WHERE id = $1`, id)
	if err != nil {
		if database.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	recipes := []*domain.Recipe{&recipe}
	if err := r.loadChildren(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListByUser returns the user's recipes, newest first
func (r *PostgresRecipeRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Recipe, error) {
	var recipes []*domain.Recipe
	err := database.Select(ctx, r.pool, &recipes, `
		SELECT id, user_id, name, description, image_url, created_at
		FROM recipes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	if err := r.loadChildren(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

func (r *PostgresRecipeRepository) loadChildren(ctx context.Context, recipes []*domain.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(recipes))
	byID := make(map[int64]*domain.Recipe, len(recipes))
	for _, rc := range recipes {
		ids = append(ids, rc.ID)
		byID[rc.ID] = rc
		rc.Ingredients = []domain.Ingredient{}
		rc.Instructions = []domain.Instruction{}
	}

	var ingredients []domain.Ingredient
	if err := database.Select(ctx, r.pool, &ingredients, `
		SELECT id, recipe_id, position, name, amount
		FROM ingredients
		WHERE recipe_id = ANY($1)
		ORDER BY recipe_id, position
	`, ids); err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}
	for _, in := range ingredients {
		rc := byID[in.RecipeID]
		rc.Ingredients = append(rc.Ingredients, in)
	}

	var instructions []domain.Instruction
	if err := database.Select(ctx, r.pool, &instructions, `
		SELECT id, recipe_id, step, instruction, cooking_time
		FROM instructions
		WHERE recipe_id = ANY($1)
		ORDER BY recipe_id, step
	`, ids); err != nil {
		return fmt.Errorf("load instructions: %w", err)
	}
	for _, st := range instructions {
		rc := byID[st.RecipeID]
		rc.Instructions = append(rc.Instructions, st)
	}
	return nil
}
