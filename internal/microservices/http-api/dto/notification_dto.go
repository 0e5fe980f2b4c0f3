package dto

import "conventionhub/internal/microservices/http-api/models"

// ListNotificationsQuery binds GET /api/notifications
type ListNotificationsQuery struct {
	IsRead   *bool   `form:"is_read"`
	Category *string `form:"category"`
	Limit    int     `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset   int     `form:"offset" binding:"omitempty,min=0"`
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// UpdatePreferencesRequest carries only the categories to change
type UpdatePreferencesRequest struct {
	InApp map[string]bool `json:"in_app"`
	Email map[string]bool `json:"email"`
}

type PreferencesResponse struct {
	Preferences *models.PreferenceSet `json:"preferences"`
	Categories  []string              `json:"categories"`
}

type PushTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"omitempty,oneof=ios android web"`
}

type PresenceResponse struct {
	ConversationID string   `json:"conversationId"`
	PresentUsers   []string `json:"presentUsers"`
	Count          int      `json:"count"`
	Changed        *bool    `json:"changed,omitempty"`
}

// SendNotificationRequest is the admin fan-out. A known category without
// literal text uses the category's translated template.
type SendNotificationRequest struct {
	UserIDs    []string       `json:"user_ids" binding:"required,min=1,max=1000"`
	Kind       string         `json:"type" binding:"omitempty,oneof=INFO SUCCESS WARNING ERROR SYSTEM"`
	Category   string         `json:"category"`
	Params     map[string]any `json:"params"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	ActionText string         `json:"action_text"`
	ActionURL  string         `json:"action_url"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
}

type SendNotificationResponse struct {
	Created    int      `json:"created"`
	Suppressed int      `json:"suppressed"`
	IDs        []string `json:"ids"`
	Errors     []string `json:"errors,omitempty"`
}
