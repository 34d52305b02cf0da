package inference

import "github.com/realqkqk123fr/temp-backend/internal/domain"

// Image is an uploaded picture forwarded as a multipart file
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GenerateRequest asks for a recipe from a photo and free-form instructions
type GenerateRequest struct {
	Instructions string
	Username     string
	SessionID    string
	Image        *Image
}

// SubstituteRequest asks for a recipe with one ingredient replaced
type SubstituteRequest struct {
	Original   string `json:"ori"`
	Substitute string `json:"sub"`
	RecipeName string `json:"recipe"`
}

// Ingredient is one ingredient line as the service returns it
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// Instruction is one cooking step as the service returns it
type Instruction struct {
	Instruction string `json:"instruction"`
	CookingTime int    `json:"cookingTime"`
}

// Substitution details a replaced ingredient
type Substitution struct {
	OriginalIngredient   string   `json:"originalIngredient"`
	SubstituteIngredient string   `json:"substituteIngredient"`
	SimilarityScore      *float64 `json:"similarityScore"`
	EstimatedAmount      string   `json:"estimatedAmount"`
	SubstitutionReason   string   `json:"substitutionReason"`
	CookingTips          []string `json:"cookingTips"`
}

// Recipe is the service's recipe payload
type Recipe struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Ingredients       []Ingredient  `json:"ingredients"`
	Instructions      []Instruction `json:"instructions"`
	ImageURL          string        `json:"imageUrl"`
	SubstituteFailure bool          `json:"substituteFailure"`
	SubstitutionInfo  *Substitution `json:"substitutionInfo"`
}

// Nutrition is the service's nutrient estimate. Unknown values are null.
type Nutrition struct {
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

// ChatRequest is one chat turn
type ChatRequest struct {
	Message   string
	Username  string
	SessionID string
	Image     *Image
}

// ChatReply is the service's answer to a chat turn
type ChatReply struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	ImageURL  string `json:"imageUrl"`
	SessionID string `json:"sessionId"`
}

// UserInfo seeds the chat service with the caller's profile and history
type UserInfo struct {
	User          *domain.User           `json:"user"`
	Recipes       []*domain.Recipe       `json:"recipes"`
	Satisfactions []*domain.Satisfaction `json:"satisfactions"`
}
