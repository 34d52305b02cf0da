package domain

import "time"

// Notification types pushed to a user's private queue
const (
	NotificationRecipeGenerated   = "recipe_generated"
	NotificationRecipeSubstituted = "recipe_substituted"
)

// SystemSender is the username on server-originated messages
const SystemSender = "system"

// Notification is the payload delivered to /user/queue/messages
type Notification struct {
	Type     string `json:"type,omitempty"`
	Message  string `json:"message"`
	Username string `json:"username"`
}

// NewSystemNotification builds a server-originated notification
func NewSystemNotification(kind, message string) Notification {
	return Notification{Type: kind, Message: message, Username: SystemSender}
}

// Domain event types published to the events topic
const (
	EventUserRegistered    = "user.registered"
	EventRecipeSaved       = "recipe.saved"
	EventNutritionSaved    = "nutrition.saved"
	EventSatisfactionRated = "satisfaction.rated"
)

// Event is a domain event keyed by the acting user
type Event struct {
	Type       string         `json:"type"`
	Username   string         `json:"username"`
	UserID     int64          `json:"userId,omitempty"`
	RecipeID   int64          `json:"recipeId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}
