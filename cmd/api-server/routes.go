package main

import (
	"log/slog"
	"net/http"
	"time"

	"conventionhub/internal/config"
	"conventionhub/internal/microservices/http-api/handler"
	"conventionhub/internal/microservices/http-api/middleware"
	"conventionhub/internal/microservices/realtime"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// routes holds everything the router mounts
type routes struct {
	registry      *realtime.Registry
	presence      realtime.PresenceController
	onConnect     realtime.ConnectHook
	validator     middleware.TokenValidator
	limiter       *middleware.UserRateLimiter
	notifications *handler.NotificationHandler
	preferences   *handler.PreferenceHandler
	pushTokens    *handler.PushTokenHandler
	presenceHTTP  *handler.PresenceHandler
	unread        *handler.UnreadHandler
}

func newRouter(cfg *config.Config, logger *slog.Logger, rt routes) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(rt.validator))

	// opening a stream is throttled, the stream itself is not
	api.GET("/notifications/stream", middleware.RateLimit(rt.limiter), realtime.StreamHandler(rt.registry, rt.onConnect))
	api.GET("/notifications/ws", middleware.RateLimit(rt.limiter), realtime.WSHandler(rt.registry, rt.presence, rt.onConnect))

	rt.notifications.RegisterRoutes(api.Group("/notifications"))
	rt.preferences.RegisterRoutes(api.Group("/notification-preferences"))
	rt.pushTokens.RegisterRoutes(api.Group("/push-tokens"))
	rt.presenceHTTP.RegisterRoutes(api.Group("/conversations"))
	api.GET("/messenger/unread-count", rt.unread.GetUnreadCount)

	api.GET("/stream/stats", middleware.RequireAdmin(), realtime.StatsHandler(rt.registry))
	rt.notifications.RegisterAdminRoutes(api.Group("/admin/notifications", middleware.RequireAdmin()))

	return r
}

// requestLogger writes one structured line per request
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// long-lived streams would log their whole lifetime as latency
		if c.FullPath() == "/api/notifications/stream" || c.FullPath() == "/api/notifications/ws" {
			return
		}
		logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"user_id", c.GetString("userID"),
		)
	}
}
