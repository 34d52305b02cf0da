package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the service
type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Mypage    *MypageHandler
	Recipe    *RecipeHandler
	Nutrition *NutritionHandler
	Chat      *ChatHandler
	Realtime  http.Handler
	Metrics   http.Handler
}

// RegisterRoutes mounts the API. Authentication is applied by the caller as
// engine middleware; whitelisted paths pass through it.
func RegisterRoutes(r gin.IRouter, h *Handlers, realtimePath string) {
	if h.Health != nil {
		r.GET("/health", h.Health.Health)
		r.GET("/ready", h.Health.Ready)
	}
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if h.Realtime != nil {
		if realtimePath == "" {
			realtimePath = "/ws"
		}
		ws := gin.WrapH(h.Realtime)
		r.GET(realtimePath, ws)
		// SockJS: info and websocket are GET, the xhr transports POST
		r.Any(realtimePath+"/*any", ws)
	}

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.Auth.Register)
	}

	api.GET("/mypage", h.Mypage.Get)
	api.POST("/mypage", h.Mypage.Update)

	recipe := api.Group("/recipe")
	{
		recipe.POST("/generate", h.Recipe.Generate)
		recipe.POST("/substitute", h.Recipe.Substitute)
		recipe.POST("/upload", h.Recipe.Upload)
		recipe.GET("/:recipeId/asistance", h.Recipe.Assistance)
		recipe.GET("/:recipeId/assistance", h.Recipe.Assistance)
		recipe.GET("/:recipeId/nutrition", h.Nutrition.Nutrition)
		recipe.POST("/:recipeId/satisfaction", h.Nutrition.Satisfaction)
	}
	api.GET("/recipes", h.Recipe.List)

	api.POST("/chat", h.Chat.PushUserInfo)
}
