package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// NutritionHandler serves nutrition estimates and satisfaction ratings
type NutritionHandler struct {
	nutritionService    service.NutritionService
	satisfactionService service.SatisfactionService
}

// NewNutritionHandler creates a new NutritionHandler
func NewNutritionHandler(nutritionService service.NutritionService, satisfactionService service.SatisfactionService) *NutritionHandler {
	return &NutritionHandler{
		nutritionService:    nutritionService,
		satisfactionService: satisfactionService,
	}
}

// Nutrition returns the nutrition of one of the caller's recipes
// GET /api/recipe/:recipeId/nutrition
func (h *NutritionHandler) Nutrition(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	n, err := h.nutritionService.Get(c.Request.Context(), id, recipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, n)
}

// Satisfaction stores the caller's rating of a recipe
// POST /api/recipe/:recipeId/satisfaction
func (h *NutritionHandler) Satisfaction(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	var req dto.SatisfactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.satisfactionService.Rate(c.Request.Context(), id, recipeID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}
