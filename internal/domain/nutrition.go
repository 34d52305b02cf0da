package domain

import "time"

// Nutrition holds the estimated nutrients of one recipe. Values the
// inference service could not estimate stay nil.
type Nutrition struct {
	ID           int64     `json:"-" db:"id"`
	RecipeID     int64     `json:"recipeId" db:"recipe_id"`
	Calories     *float64  `json:"calories" db:"calories"`
	Carbohydrate *float64  `json:"carbohydrate" db:"carbohydrate"`
	Protein      *float64  `json:"protein" db:"protein"`
	Fat          *float64  `json:"fat" db:"fat"`
	Sugar        *float64  `json:"sugar" db:"sugar"`
	Sodium       *float64  `json:"sodium" db:"sodium"`
	SaturatedFat *float64  `json:"saturatedFat" db:"saturated_fat"`
	TransFat     *float64  `json:"transFat" db:"trans_fat"`
	Cholesterol  *float64  `json:"cholesterol" db:"cholesterol"`
	UpdatedAt    time.Time `json:"-" db:"updated_at"`
}

// Satisfaction is a user's rating of a recipe, one per (user, recipe)
type Satisfaction struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	RecipeID  int64     `json:"recipeId" db:"recipe_id"`
	Rate      int       `json:"rate" db:"rate"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ValidRate reports whether rate is on the 1..5 scale
func ValidRate(rate int) bool {
	return rate >= 1 && rate <= 5
}
