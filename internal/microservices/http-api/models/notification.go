package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind is the broad family of a notification (what the UI groups by)
type Kind string

const (
	KindInfo    Kind = "INFO"
	KindSuccess Kind = "SUCCESS"
	KindWarning Kind = "WARNING"
	KindError   Kind = "ERROR"
	KindSystem  Kind = "SYSTEM"
)

var ErrEmptyContent = errors.New("notification needs a title and a message, as translation keys or literal text")

type Notification struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Kind       Kind       `gorm:"type:varchar(32);not null" json:"type"`
	Category   *string    `gorm:"type:varchar(64);index" json:"category,omitempty"`
	EntityType *string    `gorm:"type:varchar(64)" json:"entity_type,omitempty"`
	EntityID   *string    `gorm:"type:varchar(64)" json:"entity_id,omitempty"`
	ActionURL  *string    `json:"action_url,omitempty"`
	IsRead     bool       `gorm:"default:false;not null;index" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;index:idx_notifications_user_created,priority:2,sort:desc" json:"created_at"`

	// translation system
	TitleKey      *string        `gorm:"type:varchar(255)" json:"title_key,omitempty"`
	MessageKey    *string        `gorm:"type:varchar(255)" json:"message_key,omitempty"`
	ActionTextKey *string        `gorm:"type:varchar(255)" json:"action_text_key,omitempty"`
	Params        map[string]any `gorm:"serializer:json" json:"translation_params,omitempty"`

	// literal system
	TitleText   *string `gorm:"type:text" json:"title_text,omitempty"`
	MessageText *string `gorm:"type:text" json:"message_text,omitempty"`
	ActionText  *string `gorm:"type:varchar(255)" json:"action_text,omitempty"`
}

// BeforeCreate hook to set UUID before creating a Notification
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

func (Notification) TableName() string {
	return "notifications"
}

// Content returns the content bundles stored on the record
func (n *Notification) Content() Content {
	c := Content{}
	if n.TitleKey != nil || n.MessageKey != nil || n.ActionTextKey != nil {
		c.Translation = &TranslationBundle{
			TitleKey:      deref(n.TitleKey),
			MessageKey:    deref(n.MessageKey),
			ActionTextKey: deref(n.ActionTextKey),
			Params:        n.Params,
		}
	}
	if n.TitleText != nil || n.MessageText != nil || n.ActionText != nil {
		c.Literal = &LiteralBundle{
			Title:      deref(n.TitleText),
			Message:    deref(n.MessageText),
			ActionText: deref(n.ActionText),
		}
	}
	return c
}

// SetContent copies c onto the record columns
func (n *Notification) SetContent(c Content) {
	if t := c.Translation; t != nil {
		n.TitleKey = optional(t.TitleKey)
		n.MessageKey = optional(t.MessageKey)
		n.ActionTextKey = optional(t.ActionTextKey)
		n.Params = t.Params
	}
	if l := c.Literal; l != nil {
		n.TitleText = optional(l.Title)
		n.MessageText = optional(l.Message)
		n.ActionText = optional(l.ActionText)
	}
}

// TranslationBundle is resolved against the recipient's language at delivery time
type TranslationBundle struct {
	TitleKey      string         `json:"title_key"`
	MessageKey    string         `json:"message_key"`
	ActionTextKey string         `json:"action_text_key,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
}

// LiteralBundle is delivered verbatim
type LiteralBundle struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	ActionText string `json:"action_text,omitempty"`
}

// Content carries the two text systems. Each field is resolved on its own:
// a translation key wins, the literal text is used otherwise.
type Content struct {
	Translation *TranslationBundle `json:"translation,omitempty"`
	Literal     *LiteralBundle     `json:"literal,omitempty"`
}

// TranslatedContent builds translation-only content
func TranslatedContent(titleKey, messageKey string, params map[string]any) Content {
	return Content{Translation: &TranslationBundle{
		TitleKey:   titleKey,
		MessageKey: messageKey,
		Params:     params,
	}}
}

// LiteralContent builds literal-only content
func LiteralContent(title, message string) Content {
	return Content{Literal: &LiteralBundle{Title: title, Message: message}}
}

// WithAction adds an action text key (translation) or literal action text
func (c Content) WithAction(actionTextKey, actionText string) Content {
	if actionTextKey != "" {
		if c.Translation == nil {
			c.Translation = &TranslationBundle{}
		}
		c.Translation.ActionTextKey = actionTextKey
	}
	if actionText != "" {
		if c.Literal == nil {
			c.Literal = &LiteralBundle{}
		}
		c.Literal.ActionText = actionText
	}
	return c
}

// Validate fails when the title or the message has no text in either system
func (c Content) Validate() error {
	var titleKey, messageKey, title, message string
	if c.Translation != nil {
		titleKey, messageKey = c.Translation.TitleKey, c.Translation.MessageKey
	}
	if c.Literal != nil {
		title, message = c.Literal.Title, c.Literal.Message
	}
	if (titleKey == "" && title == "") || (messageKey == "" && message == "") {
		return ErrEmptyContent
	}
	return nil
}

// NotificationFilter narrows a listing
type NotificationFilter struct {
	UserID   string
	IsRead   *bool
	Category *string
	Limit    int
	Offset   int
}

// NotificationStats summarises a user's notifications
type NotificationStats struct {
	Total  int64          `json:"total"`
	Unread int64          `json:"unread"`
	ByKind map[Kind]int64 `json:"by_type"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
