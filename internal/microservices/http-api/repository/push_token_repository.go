package repository

import (
	"context"

	"conventionhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PushTokenRepository interface {
	Save(ctx context.Context, token *models.PushToken) error
	Delete(ctx context.Context, userID, token string) error
	DeleteByToken(ctx context.Context, token string) error
	ListByUser(ctx context.Context, userID string) ([]models.PushToken, error)
}

type pushTokenRepository struct {
	db *gorm.DB
}

func NewPushTokenRepository(db *gorm.DB) PushTokenRepository {
	return &pushTokenRepository{db: db}
}

// Save registers the token, moving it to userID if another account held it
func (r *pushTokenRepository) Save(ctx context.Context, token *models.PushToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(token).Error
}

func (r *pushTokenRepository) Delete(ctx context.Context, userID, token string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.PushToken{}).Error
}

// DeleteByToken drops a token the push provider reported as unregistered
func (r *pushTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.PushToken{}).Error
}

func (r *pushTokenRepository) ListByUser(ctx context.Context, userID string) ([]models.PushToken, error) {
	var tokens []models.PushToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error
	return tokens, err
}
