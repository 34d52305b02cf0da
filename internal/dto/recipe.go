package dto

import (
	"time"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
)

// IngredientDTO is one ingredient line
type IngredientDTO struct {
	Name   string `json:"name"`
	Amount string `json:"amount,omitempty"`
}

// InstructionDTO is one cooking step
type InstructionDTO struct {
	Instruction string `json:"instruction"`
	CookingTime int    `json:"cookingTime"`
}

// SubstitutionInfo describes a replaced ingredient
type SubstitutionInfo struct {
	OriginalIngredient   string   `json:"originalIngredient"`
	SubstituteIngredient string   `json:"substituteIngredient"`
	SimilarityScore      *float64 `json:"similarityScore,omitempty"`
	EstimatedAmount      string   `json:"estimatedAmount,omitempty"`
	SubstitutionReason   string   `json:"substitutionReason,omitempty"`
	CookingTips          []string `json:"cookingTips,omitempty"`
}

// RecipeResponse is a persisted recipe as returned to clients
type RecipeResponse struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Ingredients       []IngredientDTO   `json:"ingredients"`
	Instructions      []InstructionDTO  `json:"instructions"`
	ImageURL          string            `json:"imageUrl,omitempty"`
	UserID            int64             `json:"userId"`
	SubstituteFailure bool              `json:"substituteFailure"`
	SubstitutionInfo  *SubstitutionInfo `json:"substitutionInfo,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// RecipeFromDomain converts a recipe with its children to its API view
func RecipeFromDomain(r *domain.Recipe) *RecipeResponse {
	resp := &RecipeResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		UserID:       r.UserID,
		CreatedAt:    r.CreatedAt,
		Ingredients:  make([]IngredientDTO, 0, len(r.Ingredients)),
		Instructions: make([]InstructionDTO, 0, len(r.Instructions)),
	}
	for _, in := range r.Ingredients {
		resp.Ingredients = append(resp.Ingredients, IngredientDTO{Name: in.Name, Amount: in.Amount})
	}
	for _, st := range r.Instructions {
		resp.Instructions = append(resp.Instructions, InstructionDTO{Instruction: st.Instruction, CookingTime: st.CookingTime})
	}
	return resp
}

// RecipeListResponse lists the caller's recipes
type RecipeListResponse struct {
	Recipes []*RecipeResponse `json:"recipes"`
}

// SubstituteIngredientRequest asks for a recipe with one ingredient replaced
type SubstituteIngredientRequest struct {
	OriginalIngredient   string `json:"originalIngredient" binding:"required"`
	SubstituteIngredient string `json:"substituteIngredient" binding:"required"`
	RecipeName           string `json:"recipeName"`
	RecipeID             int64  `json:"recipeId"`
	SessionID            string `json:"sessionId"`
}

// UploadResponse starts a chat session from an uploaded image
type UploadResponse struct {
	SessionID       string        `json:"sessionId"`
	InitialResponse *ChatResponse `json:"initialResponse"`
	Success         bool          `json:"success"`
}

// NutritionResponse is the nutrient estimate of a recipe
type NutritionResponse struct {
	RecipeID     int64    `json:"recipeId"`
	Calories     *float64 `json:"calories"`
	Carbohydrate *float64 `json:"carbohydrate"`
	Protein      *float64 `json:"protein"`
	Fat          *float64 `json:"fat"`
	Sugar        *float64 `json:"sugar"`
	Sodium       *float64 `json:"sodium"`
	SaturatedFat *float64 `json:"saturatedFat"`
	TransFat     *float64 `json:"transFat"`
	Cholesterol  *float64 `json:"cholesterol"`
}

// NutritionFromDomain converts a nutrition record
func NutritionFromDomain(n *domain.Nutrition) *NutritionResponse {
	return &NutritionResponse{
		RecipeID:     n.RecipeID,
		Calories:     n.Calories,
		Carbohydrate: n.Carbohydrate,
		Protein:      n.Protein,
		Fat:          n.Fat,
		Sugar:        n.Sugar,
		Sodium:       n.Sodium,
		SaturatedFat: n.SaturatedFat,
		TransFat:     n.TransFat,
		Cholesterol:  n.Cholesterol,
	}
}

// SatisfactionRequest rates a recipe
type SatisfactionRequest struct {
	Rate    int    `json:"rate" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=1000"`
}

// SatisfactionResponse echoes the stored rating
type SatisfactionResponse struct {
	RecipeID int64  `json:"recipeId"`
	Rate     int    `json:"rate"`
	Comment  string `json:"comment"`
}
