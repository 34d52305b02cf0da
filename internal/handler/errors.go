package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/middleware"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// respondError maps service errors onto the response envelope
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		response.NotFound(c, response.CodeUserNotFound, "User not found")
	case errors.Is(err, domain.ErrRecipeNotFound):
		response.NotFound(c, response.CodeRecipeNotFound, "Recipe not found")
	case errors.Is(err, domain.ErrNutritionNotFound):
		response.NotFound(c, response.CodeNutritionNotFound, "Nutrition not found")
	case errors.Is(err, domain.ErrInvalidUser):
		response.Forbidden(c, response.CodeInvalidUser, "Recipe belongs to another user")
	case errors.Is(err, domain.ErrEmailExists):
		response.Conflict(c, response.CodeExistingEmail, "Email is already registered")
	case errors.Is(err, domain.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error(), "")
	case domain.IsValidationError(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, inference.ErrUpstream), errors.Is(err, inference.ErrUnavailable):
		response.BadGateway(c, "Inference service request failed")
	default:
		response.InternalError(c, err)
	}
}

// identity returns the caller bound by the auth middleware or writes 401
func identity(c *gin.Context) (*security.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return nil, false
	}
	return id, true
}
