package repository_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"conventionhub/database"
	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/repository"
	"conventionhub/internal/microservices/http-api/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// needs a migratable postgres in DATABASE_URL, skipped otherwise
func openTestStore(t *testing.T) (*gorm.DB, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	require.NoError(t, database.RunMigrations(url, slog.Default()))

	db, err := gorm.Open(postgres.Open(url), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return db, pool
}

func createUser(t *testing.T, db *gorm.DB) string {
	t.Helper()
	id := uuid.NewString()
	u := models.User{ID: id, Pseudo: "it-" + id[:8], Email: id[:8] + "@example.com"}
	require.NoError(t, db.Create(&u).Error)
	t.Cleanup(func() { db.Delete(&models.User{}, "id = ?", id) })
	return id
}

func TestPostgres_PreferencesRoundTrip(t *testing.T) {
	db, _ := openTestStore(t)
	ctx := context.Background()
	userID := createUser(t, db)
	repo := repository.NewPreferenceRepository(db)

	require.NoError(t, repo.Upsert(ctx, []models.NotificationPreference{
		{UserID: userID, Category: models.CategoryNewMessage, InAppEnabled: false, EmailEnabled: false, UpdatedAt: time.Now()},
	}))
	stored, err := repo.FindOne(ctx, userID, models.CategoryNewMessage)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.InAppEnabled)
	assert.False(t, stored.EmailEnabled)

	// the conflict branch must carry false too
	require.NoError(t, repo.Upsert(ctx, []models.NotificationPreference{
		{UserID: userID, Category: models.CategoryNewMessage, InAppEnabled: true, EmailEnabled: false, UpdatedAt: time.Now()},
	}))
	stored, err = repo.FindOne(ctx, userID, models.CategoryNewMessage)
	require.NoError(t, err)
	assert.True(t, stored.InAppEnabled)
	assert.False(t, stored.EmailEnabled)

	prefs := service.NewPreferenceService(repo)
	set, err := prefs.UpdatePreferences(ctx, userID, map[string]bool{models.CategoryTicketPurchased: false}, nil)
	require.NoError(t, err)
	assert.False(t, set.InApp[models.CategoryTicketPurchased])
	allowed, err := prefs.IsAllowed(ctx, userID, models.CategoryTicketPurchased)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPostgres_NotificationsAreOwnerScoped(t *testing.T) {
	db, _ := openTestStore(t)
	ctx := context.Background()
	alice := createUser(t, db)
	bob := createUser(t, db)
	repo := repository.NewNotificationRepository(db)

	title, message := "Seat confirmed", "See you on Friday"
	n := &models.Notification{UserID: alice, Kind: models.KindSuccess, TitleText: &title, MessageText: &message}
	require.NoError(t, repo.Create(ctx, n))
	require.NotEmpty(t, n.ID)

	assert.ErrorIs(t, repo.SetRead(ctx, n.ID, bob, true, time.Now()), repository.ErrNotificationNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, n.ID, bob), repository.ErrNotificationNotFound)

	require.NoError(t, repo.SetRead(ctx, n.ID, alice, true, time.Now()))
	stats, err := repo.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(0), stats.Unread)
	assert.Equal(t, int64(1), stats.ByKind[models.KindSuccess])

	require.NoError(t, repo.Delete(ctx, n.ID, alice))
	_, err = repo.GetByIDForUser(ctx, n.ID, alice)
	assert.ErrorIs(t, err, repository.ErrNotificationNotFound)
}

func TestPostgres_UnreadSkipsOwnAndAlreadyReadMessages(t *testing.T) {
	db, pool := openTestStore(t)
	ctx := context.Background()
	alice := createUser(t, db)
	bob := createUser(t, db)

	conv := models.Conversation{ID: uuid.NewString(), Kind: "private"}
	require.NoError(t, db.Create(&conv).Error)
	t.Cleanup(func() { db.Delete(&models.Conversation{}, "id = ?", conv.ID) })

	readMark := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&[]models.ConversationParticipant{
		{ConversationID: conv.ID, UserID: alice, LastReadAt: &readMark},
		{ConversationID: conv.ID, UserID: bob},
	}).Error)
	require.NoError(t, db.Create(&[]models.ConversationMessage{
		{ConversationID: conv.ID, AuthorID: bob, Body: "before the read mark", CreatedAt: readMark.Add(-time.Minute)},
		{ConversationID: conv.ID, AuthorID: bob, Body: "new 1", CreatedAt: time.Now()},
		{ConversationID: conv.ID, AuthorID: bob, Body: "new 2", CreatedAt: time.Now()},
		{ConversationID: conv.ID, AuthorID: alice, Body: "my own", CreatedAt: time.Now()},
	}).Error)

	rows, err := repository.NewUnreadRepository(pool).UnreadByConversation(ctx, alice)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, conv.ID, rows[0].ConversationID)
	assert.Equal(t, 2, rows[0].Unread)
}
