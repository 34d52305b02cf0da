package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/realqkqk123fr/temp-backend/internal/dto"
	"github.com/realqkqk123fr/temp-backend/internal/realtime"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/pkg/response"
)

// ChatDestination is the application destination of chat messages
const ChatDestination = "chat.sendMessage"

// ChatHandler serves chat over REST and the realtime gateway
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// PushUserInfo sends the caller's profile, recipes and ratings to the chat service
// POST /api/chat
func (h *ChatHandler) PushUserInfo(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	resp, err := h.chatService.PushUserInfo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

// SendMessage handles /app/chat.sendMessage. The reply is pushed to the
// sender's /user/queue/messages.
func (h *ChatHandler) SendMessage(ctx context.Context, msg *realtime.Message) error {
	var chat dto.ChatMessage
	if err := json.Unmarshal(msg.Body, &chat); err != nil {
		return fmt.Errorf("decode chat message: %w", err)
	}
	h.chatService.HandleMessage(ctx, &chat)
	return nil
}

// Register binds the realtime destinations of this handler
func (h *ChatHandler) Register(r *realtime.Router) {
	r.Handle(ChatDestination, h.SendMessage)
}
