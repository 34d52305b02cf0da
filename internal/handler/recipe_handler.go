package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// MaxImageBytes bounds uploaded recipe photos
const MaxImageBytes = 10 << 20

var errImageTooLarge = errors.New("image exceeds 10MB")

// RecipeHandler serves recipe generation and lookup
type RecipeHandler struct {
	recipeService service.RecipeService
}

// NewRecipeHandler creates a new RecipeHandler
func NewRecipeHandler(recipeService service.RecipeService) *RecipeHandler {
	return &RecipeHandler{recipeService: recipeService}
}

// Generate creates a recipe from a photo and instructions
// POST /api/recipe/generate (multipart: image, instructions)
func (h *RecipeHandler) Generate(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	in, ok := generateInput(c)
	if !ok {
		return
	}

	recipe, err := h.recipeService.Generate(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, recipe)
}

// Substitute replaces one ingredient of a recipe
// POST /api/recipe/substitute
func (h *RecipeHandler) Substitute(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req dto.SubstituteIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	recipe, err := h.recipeService.Substitute(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, recipe)
}

// Upload starts a chat session from a photo
// POST /api/recipe/upload (multipart: image, instructions)
func (h *RecipeHandler) Upload(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	in, ok := generateInput(c)
	if !ok {
		return
	}

	resp, err := h.recipeService.Upload(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

// Assistance fetches a recipe from the inference service and keeps a copy
// GET /api/recipe/:recipeId/asistance
// GET /api/recipe/:recipeId/assistance
func (h *RecipeHandler) Assistance(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	recipeID, ok := recipeIDParam(c)
	if !ok {
		return
	}

	recipe, err := h.recipeService.Assistance(c.Request.Context(), id, recipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, recipe)
}

// List returns the caller's recipes
// GET /api/recipes
func (h *RecipeHandler) List(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	recipes, err := h.recipeService.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithMeta(c, dto.RecipeListResponse{Recipes: recipes}, response.Meta{Total: len(recipes)})
}

func recipeIDParam(c *gin.Context) (int64, bool) {
	recipeID, err := strconv.ParseInt(c.Param("recipeId"), 10, 64)
	if err != nil || recipeID <= 0 {
		response.BadRequest(c, "Invalid recipe id")
		return 0, false
	}
	return recipeID, true
}

// generateInput reads the image and instructions form fields
func generateInput(c *gin.Context) (*service.GenerateInput, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image is required")
		return nil, false
	}
	if fh.Size > MaxImageBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeInvalidRequest, errImageTooLarge.Error(), "")
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		response.InternalError(c, fmt.Errorf("open upload: %w", err))
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		response.InternalError(c, fmt.Errorf("read upload: %w", err))
		return nil, false
	}
	if len(data) > MaxImageBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeInvalidRequest, errImageTooLarge.Error(), "")
		return nil, false
	}

	return &service.GenerateInput{
		Instructions: c.PostForm("instructions"),
		Image: &inference.Image{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		},
	}, true
}
