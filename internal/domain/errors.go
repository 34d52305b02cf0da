package domain

import "errors"

// Domain errors
var (
	// User errors
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailExists          = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("bad credentials")
	ErrIdentityNotPersisted = errors.New("identity has no backing account")

	// Recipe errors
	ErrRecipeNotFound    = errors.New("recipe not found")
	ErrNutritionNotFound = errors.New("nutrition not found")
	ErrInvalidUser       = errors.New("recipe belongs to another user")

	// Validation errors
	ErrInvalidRate       = errors.New("rate must be between 1 and 5")
	ErrInvalidRecipeID   = errors.New("invalid recipe id")
	ErrMissingImage      = errors.New("image is required")
	ErrInvalidIngredient = errors.New("original and substitute ingredients are required")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrIdentityNotPersisted) ||
		errors.Is(err, ErrRecipeNotFound) ||
		errors.Is(err, ErrNutritionNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidRecipeID) ||
		errors.Is(err, ErrMissingImage) ||
		errors.Is(err, ErrInvalidIngredient)
}
