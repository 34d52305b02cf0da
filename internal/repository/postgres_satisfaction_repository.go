package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
)

// PostgresSatisfactionRepository implements SatisfactionRepository using PostgreSQL
type PostgresSatisfactionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSatisfactionRepository creates a new PostgresSatisfactionRepository
func NewPostgresSatisfactionRepository(pool *pgxpool.Pool) *PostgresSatisfactionRepository {
	return &PostgresSatisfactionRepository{pool: pool}
}

// Upsert stores the user's latest rating of a recipe
func (r *PostgresSatisfactionRepository) Upsert(ctx context.Context, s *domain.Satisfaction) error {
	s.CreatedAt = time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO satisfactions (user_id, recipe_id, rate, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, recipe_id) DO UPDATE SET
			rate = EXCLUDED.rate,
			comment = EXCLUDED.comment,
			created_at = EXCLUDED.created_at
		RETURNING id
	`, s.UserID, s.RecipeID, s.Rate, s.Comment, s.CreatedAt).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("upsert satisfaction: %w", err)
	}
	return nil
}

// ListByUser returns every rating the user gave
func (r *PostgresSatisfactionRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Satisfaction, error) {
	var out []*domain.Satisfaction
	err := database.Select(ctx, r.pool, &out, `
		SELECT id, user_id, recipe_id, rate, comment, created_at
		FROM satisfactions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list satisfactions: %w", err)
	}
	return out, nil
}
