package dto

// ChatMessage is the realtime chat frame body, both directions
type ChatMessage struct {
	Message   string `json:"message"`
	Username  string `json:"username,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// ChatResponse is the inference service's chat reply
type ChatResponse struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	ImageURL  string `json:"imageUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// UserInfoResponse acknowledges the profile push to the chat service
type UserInfoResponse struct {
	Recipes       int `json:"recipes"`
	Satisfactions int `json:"satisfactions"`
}
