package models

import "time"

type Conversation struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Kind      string    `gorm:"type:varchar(32);not null" json:"type"` // private, carpool, volunteer_team
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant links a user to a conversation.
// LeftAt set = the user departed and no longer counts as a member.
type ConversationParticipant struct {
	ConversationID string     `gorm:"primaryKey;type:uuid" json:"conversation_id"`
	UserID         string     `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	JoinedAt       time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"joined_at"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

type ConversationMessage struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	AuthorID       string    `gorm:"type:uuid;not null" json:"author_id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_messages"
}

// UnreadCount is the messenger badge: unread messages summed over the
// user's active conversations
type UnreadCount struct {
	UnreadCount       int `json:"unreadCount"`
	ConversationCount int `json:"conversationCount"`
}
