package domain

import "time"

// Recipe is a generated or fetched recipe owned by a user
type Recipe struct {
	ID           int64         `json:"id" db:"id"`
	UserID       int64         `json:"userId" db:"user_id"`
	Name         string        `json:"name" db:"name"`
	Description  string        `json:"description" db:"description"`
	ImageURL     string        `json:"imageUrl" db:"image_url"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
	Ingredients  []Ingredient  `json:"ingredients" db:"-"`
	Instructions []Instruction `json:"instructions" db:"-"`
}

// OwnedBy reports whether userID owns the recipe
func (r *Recipe) OwnedBy(userID int64) bool {
	return r != nil && r.UserID == userID
}

// Ingredient is one line of a recipe's ingredient list
type Ingredient struct {
	ID       int64  `json:"-" db:"id"`
	RecipeID int64  `json:"-" db:"recipe_id"`
	Position int    `json:"-" db:"position"`
	Name     string `json:"name" db:"name"`
	Amount   string `json:"amount" db:"amount"`
}

// Instruction is one cooking step
type Instruction struct {
	ID          int64  `json:"-" db:"id"`
	RecipeID    int64  `json:"-" db:"recipe_id"`
	Step        int    `json:"-" db:"step"`
	Instruction string `json:"instruction" db:"instruction"`
	CookingTime int    `json:"cookingTime" db:"cooking_time"`
}
