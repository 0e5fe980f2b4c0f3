package repository

import (
	"context"

	"conventionhub/internal/microservices/http-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository stores per-category overrides. Absent rows mean enabled.
type PreferenceRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.NotificationPreference, error)
	FindOne(ctx context.Context, userID, category string) (*models.NotificationPreference, error)
	Upsert(ctx context.Context, prefs []models.NotificationPreference) error
}

type preferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) ListByUser(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	var prefs []models.NotificationPreference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&prefs).Error
	return prefs, err
}

// FindOne returns nil without error when no override is stored
func (r *preferenceRepository) FindOne(ctx context.Context, userID, category string) (*models.NotificationPreference, error) {
	var prefs []models.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ?", userID, category).
		Limit(1).
		Find(&prefs).Error
	if err != nil || len(prefs) == 0 {
		return nil, err
	}
	return &prefs[0], nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, prefs []models.NotificationPreference) error {
	if len(prefs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"in_app_enabled", "email_enabled", "updated_at"}),
	}).Create(&prefs).Error
}
