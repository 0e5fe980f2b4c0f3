package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"conventionhub/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough-123"

func signToken(t *testing.T, secret string, claims shared.AuthClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(userID, role string) shared.AuthClaims {
	return shared.AuthClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func setupRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("userID"), "role": c.GetString("role")})
	})
	router.GET("/protected", handlers...)
	return router
}

func TestAuthMiddleware(t *testing.T) {
	router := setupRouter(AuthMiddleware(NewJWTValidator(testSecret)))

	expired := validClaims("u1", "")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExpiry := shared.AuthClaims{UserID: "u1"}

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"valid bearer", "Bearer " + signToken(t, testSecret, validClaims("u1", "")), "", http.StatusOK},
		{"query token for streams", "", "?access_token=" + signToken(t, testSecret, validClaims("u1", "")), http.StatusOK},
		{"missing header", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-entirely-0123456789", validClaims("u1", "")), "", http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, expired), "", http.StatusUnauthorized},
		{"no expiry", "Bearer " + signToken(t, testSecret, noExpiry), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_SubjectFallbackAndDefaultRole(t *testing.T) {
	router := setupRouter(AuthMiddleware(NewJWTValidator(testSecret)))
	claims := validClaims("", "")
	claims.Subject = "from-sub"

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"from-sub","role":"user"}`, w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	router := setupRouter(AuthMiddleware(NewJWTValidator(testSecret)), RequireAdmin())

	for role, want := range map[string]int{shared.RoleAdmin: http.StatusOK, shared.RoleUser: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("u1", role)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestUserRateLimiter(t *testing.T) {
	l := NewUserRateLimiter(60, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"), "burst exhausted")
	assert.True(t, l.Allow("bob"), "buckets are per user")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("alice"), "one token refilled after a second at 60/min")
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewUserRateLimiter(1, 1)
	router := setupRouter(func(c *gin.Context) { c.Set("userID", "u1"); c.Next() }, RateLimit(limiter))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
