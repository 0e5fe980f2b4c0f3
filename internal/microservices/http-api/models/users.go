package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the slice of the account table this service reads: who to email
// and which language to render in. Accounts are managed upstream.
type User struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	Pseudo            string    `gorm:"uniqueIndex;not null" json:"pseudo"`
	Email             string    `gorm:"uniqueIndex;not null" json:"email"`
	PreferredLanguage string    `gorm:"type:varchar(8);default:'en';not null" json:"preferred_language"`
	Role              string    `gorm:"default:'user';not null" json:"role"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BeforeCreate hook to set UUID before creating a User
func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return
}

func (User) TableName() string {
	return "users"
}

// PushToken is an Expo push token registered by one of the user's devices
type PushToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"token"`
	Platform  string    `gorm:"type:varchar(16)" json:"platform"` // ios, android, web
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PushToken) TableName() string {
	return "push_tokens"
}
