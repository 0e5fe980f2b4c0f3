package repository

import (
    "context"
    "errors"
    "time"

    "conventionhub/internal/microservices/http-api/models"

    "gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
    Create(ctx context.Context, notification *models.Notification) error
    GetByIDForUser(ctx context.Context, id, userID string) (*models.Notification, error)
    List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
    SetRead(ctx context.Context, id, userID string, read bool, at time.Time) error
    MarkAllAsRead(ctx context.Context, userID string, category *string, at time.Time) (int64, error)
    Delete(ctx context.Context, id, userID string) error
    DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
    CountUnread(ctx context.Context, userID string, category *string) (int64, error)
    Stats(ctx context.Context, userID string) (*models.NotificationStats, error)
}

type notificationRepository struct {
    db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
    return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
    return r.db.WithContext(ctx).Create(notification).Error
}

// GetByIDForUser only finds records owned by userID, anything else is not found
func (r *notificationRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Notification, error) {
    var n models.Notification
    err := r.db.WithContext(ctx).
        Where("id = ? AND user_id = ?", id, userID).
        First(&n).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, ErrNotificationNotFound
    }
    if err != nil {
        return nil, err
    }
    return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
    var notifications []models.Notification
    q := r.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
    if filter.IsRead != nil {
        q = q.Where("is_read = ?", *filter.IsRead)
    }
    if filter.Category != nil {
        q = q.Where("category = ?", *filter.Category)
    }
    if filter.Limit > 0 {
        q = q.Limit(filter.Limit)
    }
    if filter.Offset > 0 {
        q = q.Offset(filter.Offset)
    }
    err := q.Order("created_at DESC").Find(&notifications).Error
    return notifications, err
}

func (r *notificationRepository) SetRead(ctx context.Context, id, userID string, read bool, at time.Time) error {
    updates := map[string]any{"is_read": read, "read_at": nil}
    if read {
        updates["read_at"] = at
    }
    result := r.db.WithContext(ctx).
        Model(&models.Notification{}).
        Where("id = ? AND user_id = ?", id, userID).
        Updates(updates)
    if result.Error != nil {
        return result.Error
    }
    if result.RowsAffected == 0 {
        return ErrNotificationNotFound
    }
    return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID string, category *string, at time.Time) (int64, error) {
    q := r.db.WithContext(ctx).
        Model(&models.Notification{}).
        Where("user_id = ? AND is_read = false", userID)
    if category != nil {
        q = q.Where("category = ?", *category)
    }
    result := q.Updates(map[string]any{"is_read": true, "read_at": at})
    return result.RowsAffected, result.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID string) error {
    result := r.db.WithContext(ctx).
        Where("id = ? AND user_id = ?", id, userID).
        Delete(&models.Notification{})
    if result.Error != nil {
        return result.Error
    }
    if result.RowsAffected == 0 {
        return ErrNotificationNotFound
    }
    return nil
}

// DeleteReadOlderThan is the retention sweep, unread records are never removed
func (r *notificationRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
    result := r.db.WithContext(ctx).
        Where("is_read = true AND created_at < ?", cutoff).
        Delete(&models.Notification{})
    return result.RowsAffected, result.Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string, category *string) (int64, error) {
    var count int64
    q := r.db.WithContext(ctx).
        Model(&models.Notification{}).
        Where("user_id = ? AND is_read = false", userID)
    if category != nil {
        q = q.Where("category = ?", *category)
    }
    err := q.Count(&count).Error
    return count, err
}

func (r *notificationRepository) Stats(ctx context.Context, userID string) (*models.NotificationStats, error) {
    var rows []struct {
        Kind   models.Kind
        Total  int64
        Unread int64
    }
    err := r.db.WithContext(ctx).
        Model(&models.Notification{}).
        Select("kind, COUNT(*) AS total, COUNT(*) FILTER (WHERE is_read = false) AS unread").
        Where("user_id = ?", userID).
        Group("kind").
        Scan(&rows).Error
    if err != nil {
        return nil, err
    }

    stats := &models.NotificationStats{ByKind: make(map[models.Kind]int64)}
    for _, row := range rows {
        stats.Total += row.Total
        stats.Unread += row.Unread
        stats.ByKind[row.Kind] = row.Total
    }
    return stats, nil
}
