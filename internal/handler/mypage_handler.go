package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// MypageHandler serves the caller's profile
type MypageHandler struct {
	userService service.UserService
}

// NewMypageHandler creates a new MypageHandler
func NewMypageHandler(userService service.UserService) *MypageHandler {
	return &MypageHandler{userService: userService}
}

// Get returns the profile
// GET /api/mypage
func (h *MypageHandler) Get(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.MypageFromDomain(user))
}

// Update replaces the profile
// POST /api/mypage
func (h *MypageHandler) Update(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	var req dto.MypageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.MypageFromDomain(user))
}
