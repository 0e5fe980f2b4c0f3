package repository

import (
	"context"

	"conventionhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// ConversationRepository answers membership questions for presence fan-out
type ConversationRepository interface {
	ActiveParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
	IsActiveParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// ActiveParticipantIDs excludes participants who left the conversation
func (r *conversationRepository) ActiveParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *conversationRepository) IsActiveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}
