package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/domain"
	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// RefreshTokenCookie carries the refresh token after login
const RefreshTokenCookie = "refreshToken"

// LoginObserver is told the outcome of every login attempt
type LoginObserver func(result string)

// AuthHandler handles login and registration
type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
	log         *logger.Logger
	observe     LoginObserver
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, userService service.UserService, log *logger.Logger, observe LoginObserver) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &AuthHandler{authService: authService, userService: userService, log: log, observe: observe}
}

// Login exchanges credentials for a token pair. The access token goes out in
// the Authorization header and the body, the refresh token in an HttpOnly
// cookie and the body.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid login request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.loginFailed(c, err)
		return
	}
	h.observe("success")

	c.Header("Authorization", "Bearer "+result.AccessToken)
	exposeHeader(c, "Authorization")
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    result.RefreshToken,
		Path:     "/",
		MaxAge:   int(result.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
	})

	c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Username:     result.Username,
	})
}

func (h *AuthHandler) loginFailed(c *gin.Context, err error) {
	var message string
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		h.observe("invalid_credentials")
		message = domain.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrLoginTimeout):
		h.observe("timeout")
		message = service.ErrLoginTimeout.Error()
		h.log.WithContext(c.Request.Context()).Warn("login timed out")
	default:
		h.observe("error")
		message = "authentication failed"
		h.log.WithContext(c.Request.Context()).Error("login failed", zap.Error(err))
	}
	c.JSON(http.StatusUnauthorized, dto.LoginFailure{Error: "login failed", Message: message})
}

// exposeHeader adds name to Access-Control-Expose-Headers unless CORS already did
func exposeHeader(c *gin.Context, name string) {
	current := c.Writer.Header().Get("Access-Control-Expose-Headers")
	for _, h := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return
		}
	}
	if current == "" {
		c.Header("Access-Control-Expose-Headers", name)
		return
	}
	c.Header("Access-Control-Expose-Headers", current+", "+name)
}

// Register creates an account
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, dto.RegisterResponse{Username: user.Username, Email: user.Email})
}
