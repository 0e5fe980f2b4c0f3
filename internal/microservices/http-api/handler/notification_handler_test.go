package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"conventionhub/internal/microservices/http-api/dto"
	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationService mocks the NotificationService interface
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Create(ctx context.Context, in service.CreateInput) (*models.Notification, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationService) CreateForUsers(ctx context.Context, userIDs []string, in service.CreateInput) ([]*models.Notification, error) {
	args := m.Called(ctx, userIDs, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationService) GetForUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockNotificationService) MarkAsUnread(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID string, category *string) (int64, error) {
	args := m.Called(ctx, userID, category)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Delete(ctx context.Context, id, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockNotificationService) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	args := m.Called(ctx, maxAgeDays)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) GetUnreadCount(ctx context.Context, userID string, category *string) (int64, error) {
	args := m.Called(ctx, userID, category)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) GetStats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationStats), args.Error(1)
}

func (m *MockNotificationService) PushUnreadCount(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

func (m *MockNotificationService) Drain() {}

// authedRouter stands in for the auth middleware
func authedRouter(userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("userID", userID)
		}
		c.Next()
	})
	return r
}

func notificationRouter(svc *MockNotificationService, userID string) *gin.Engine {
	r := authedRouter(userID)
	NewNotificationHandler(svc).RegisterRoutes(r.Group("/api/notifications"))
	return r
}

func TestNotificationHandler_ListAppliesFilters(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")

	unread := false
	system := "system"
	expected := models.NotificationFilter{UserID: "user-1", IsRead: &unread, Category: &system, Limit: 10, Offset: 5}
	svc.On("GetForUser", mock.Anything, expected).Return([]models.Notification{{ID: "n1", UserID: "user-1"}}, nil)

	req, _ := http.NewRequest("GET", "/api/notifications?is_read=false&category=system&limit=10&offset=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.NotificationListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Notifications, 1)
	assert.Equal(t, "n1", resp.Notifications[0].ID)
	svc.AssertExpectations(t)
}

func TestNotificationHandler_ListEmptyIsArray(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("GetForUser", mock.Anything, mock.Anything).Return(nil, nil)

	req, _ := http.NewRequest("GET", "/api/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notifications":[]`)
}

func TestNotificationHandler_ListRejectsBadLimit(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")

	req, _ := http.NewRequest("GET", "/api/notifications?limit=1000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "GetForUser", mock.Anything, mock.Anything)
}

func TestNotificationHandler_RequiresUser(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "")

	req, _ := http.NewRequest("GET", "/api/notifications/unread-count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandler_UnreadCount(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("GetUnreadCount", mock.Anything, "user-1", (*string)(nil)).Return(int64(4), nil)

	req, _ := http.NewRequest("GET", "/api/notifications/unread-count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"unreadCount":4}`, w.Body.String())
}

func TestNotificationHandler_MarkAsRead(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusNoContent},
		{"not owned", service.ErrNotificationNotFound, http.StatusNotFound},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNotificationService)
			router := notificationRouter(svc, "user-1")
			svc.On("MarkAsRead", mock.Anything, "n1", "user-1").Return(tt.err)

			req, _ := http.NewRequest("PATCH", "/api/notifications/n1/read", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "connection refused")
			svc.AssertExpectations(t)
		})
	}
}

func TestNotificationHandler_MarkAsUnread(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("MarkAsUnread", mock.Anything, "n1", "user-1").Return(nil)

	req, _ := http.NewRequest("PATCH", "/api/notifications/n1/unread", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestNotificationHandler_MarkAllAsReadByCategory(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("MarkAllAsRead", mock.Anything, "user-1", mock.MatchedBy(func(c *string) bool {
		return c != nil && *c == "new_message"
	})).Return(int64(3), nil)

	req, _ := http.NewRequest("PATCH", "/api/notifications/read-all?category=new_message", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":3}`, w.Body.String())
}

func TestNotificationHandler_Delete(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("Delete", mock.Anything, "n9", "user-1").Return(service.ErrNotificationNotFound)

	req, _ := http.NewRequest("DELETE", "/api/notifications/n9", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationHandler_Stats(t *testing.T) {
	svc := new(MockNotificationService)
	router := notificationRouter(svc, "user-1")
	svc.On("GetStats", mock.Anything, "user-1").Return(&models.NotificationStats{
		Total:  3,
		Unread: 1,
		ByKind: map[models.Kind]int64{models.KindInfo: 2, models.KindError: 1},
	}, nil)

	req, _ := http.NewRequest("GET", "/api/notifications/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3,"unread":1,"by_type":{"INFO":2,"ERROR":1}}`, w.Body.String())
}

// MockPreferenceService mocks the PreferenceService interface
type MockPreferenceService struct {
	mock.Mock
}

func (m *MockPreferenceService) GetPreferences(ctx context.Context, userID string) (*models.PreferenceSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferenceSet), args.Error(1)
}

func (m *MockPreferenceService) IsAllowed(ctx context.Context, userID, category string) (bool, error) {
	args := m.Called(ctx, userID, category)
	return args.Bool(0), args.Error(1)
}

func (m *MockPreferenceService) IsEmailAllowed(ctx context.Context, userID, category string) (bool, error) {
	args := m.Called(ctx, userID, category)
	return args.Bool(0), args.Error(1)
}

func (m *MockPreferenceService) UpdatePreferences(ctx context.Context, userID string, inApp, email map[string]bool) (*models.PreferenceSet, error) {
	args := m.Called(ctx, userID, inApp, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PreferenceSet), args.Error(1)
}

func (m *MockPreferenceService) Categories() []string {
	return models.KnownCategories
}

func TestPreferenceHandler_Update(t *testing.T) {
	svc := new(MockPreferenceService)
	router := authedRouter("user-1")
	NewPreferenceHandler(svc).RegisterRoutes(router.Group("/api/notification-preferences"))

	inApp := map[string]bool{"new_message": false}
	svc.On("UpdatePreferences", mock.Anything, "user-1", inApp, map[string]bool(nil)).
		Return(&models.PreferenceSet{UserID: "user-1", InApp: inApp, Email: map[string]bool{}}, nil)

	body, _ := json.Marshal(dto.UpdatePreferencesRequest{InApp: inApp})
	req, _ := http.NewRequest("PUT", "/api/notification-preferences", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp dto.PreferencesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Preferences.InApp["new_message"])
	assert.NotEmpty(t, resp.Categories)
	svc.AssertExpectations(t)
}

func TestPreferenceHandler_UpdateUnknownCategory(t *testing.T) {
	svc := new(MockPreferenceService)
	router := authedRouter("user-1")
	NewPreferenceHandler(svc).RegisterRoutes(router.Group("/api/notification-preferences"))

	svc.On("UpdatePreferences", mock.Anything, "user-1", mock.Anything, mock.Anything).
		Return(nil, errors.Join(service.ErrInvalidInput, errors.New("unknown category \"bogus\"")))

	req, _ := http.NewRequest("PUT", "/api/notification-preferences", bytes.NewBufferString(`{"email":{"bogus":true}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferenceHandler_UpdateRejectsEmptyBody(t *testing.T) {
	svc := new(MockPreferenceService)
	router := authedRouter("user-1")
	NewPreferenceHandler(svc).RegisterRoutes(router.Group("/api/notification-preferences"))

	req, _ := http.NewRequest("PUT", "/api/notification-preferences", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "UpdatePreferences", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func adminRouter(svc *MockNotificationService) *gin.Engine {
	r := authedRouter("admin-1")
	NewNotificationHandler(svc).RegisterAdminRoutes(r.Group("/api/admin/notifications"))
	return r
}

func TestNotificationHandler_SendUsesCategoryTemplate(t *testing.T) {
	svc := new(MockNotificationService)
	router := adminRouter(svc)

	svc.On("CreateForUsers", mock.Anything, []string{"u1", "u2", "u3"}, mock.MatchedBy(func(in service.CreateInput) bool {
		return in.Category == models.CategoryEditionPublished &&
			in.Content.Translation != nil &&
			in.Content.Translation.TitleKey == "notifications.edition_published.title" &&
			in.Content.Translation.Params["edition_name"] == "Japan Expo"
	})).Return([]*models.Notification{{ID: "n1"}, {ID: "n2"}}, nil)

	body := `{"user_ids":["u1","u2","u3"],"category":"edition_published","params":{"edition_name":"Japan Expo"}}`
	req, _ := http.NewRequest("POST", "/api/admin/notifications", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp dto.SendNotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Created)
	assert.Equal(t, 1, resp.Suppressed)
	assert.Equal(t, []string{"n1", "n2"}, resp.IDs)
	svc.AssertExpectations(t)
}

func TestNotificationHandler_SendLiteralWithPartialFailure(t *testing.T) {
	svc := new(MockNotificationService)
	router := adminRouter(svc)

	svc.On("CreateForUsers", mock.Anything, []string{"u1", "u2"}, mock.MatchedBy(func(in service.CreateInput) bool {
		return in.Content.Literal != nil && in.Content.Literal.Title == "Doors open" && in.Kind == models.KindSystem
	})).Return([]*models.Notification{{ID: "n1"}}, errors.Join(errors.New("user u2: store down")))

	body := `{"user_ids":["u1","u2"],"type":"SYSTEM","title":"Doors open","message":"Hall A is open."}`
	req, _ := http.NewRequest("POST", "/api/admin/notifications", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	var resp dto.SendNotificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 0, resp.Suppressed)
	assert.Len(t, resp.Errors, 1)
}

func TestNotificationHandler_SendRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no recipients", `{"user_ids":[],"title":"a","message":"b"}`},
		{"bad type", `{"user_ids":["u1"],"type":"LOUD","title":"a","message":"b"}`},
		{"unknown template", `{"user_ids":["u1"],"category":"bogus"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockNotificationService)
			router := adminRouter(svc)

			req, _ := http.NewRequest("POST", "/api/admin/notifications", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "CreateForUsers", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
