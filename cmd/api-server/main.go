package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conventionhub/database"
	"conventionhub/internal/config"
	"conventionhub/internal/i18n"
	"conventionhub/internal/microservices/delivery"
	"conventionhub/internal/microservices/http-api/handler"
	"conventionhub/internal/microservices/http-api/middleware"
	"conventionhub/internal/microservices/http-api/repository"
	"conventionhub/internal/microservices/http-api/service"
	"conventionhub/internal/microservices/presence"
	"conventionhub/internal/microservices/realtime"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	db, err := database.OpenGorm(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	pool, err := database.OpenPool(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open pool: %v", err)
	}
	defer pool.Close()

	// Repositories
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	pushTokenRepo := repository.NewPushTokenRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	unreadRepo := repository.NewUnreadRepository(pool)

	// Live connections and presence
	registry := realtime.NewRegistry(realtime.WithLogger(logger))

	var members presence.MembershipCache = presence.NewMemoryCache(conversationRepo, cfg.MembershipCacheTTL)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis_unavailable", "error", err)
		}
		members = presence.NewRedisCache(rdb, conversationRepo, cfg.MembershipCacheTTL, logger)
	}
	tracker := presence.NewTracker(members, registry, presence.WithLogger(logger))

	registry.OnUserDisconnected(func(userID string) {
		// eviction paths must not wait on the membership store; a quick
		// reconnect keeps whatever presence has not been walked yet
		go func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			tracker.CleanupIfOffline(cleanupCtx, userID, registry.IsOnline)
		}()
	})

	// Translations
	translator, err := i18n.LoadDir(cfg.LocalesPath, cfg.DefaultLanguage, i18n.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// Delivery channels
	var pushSender delivery.PushSender = delivery.LogPushSender{Logger: logger}
	if cfg.PushEnabled {
		pushSender = delivery.NewExpoSender(cfg.ExpoAccessToken, pushTokenRepo, logger)
	}
	var emailSender delivery.EmailSender = delivery.LogEmailSender{Logger: logger}
	if cfg.EmailEnabled() {
		emailSender, err = delivery.NewPostmarkSender(delivery.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			SenderEmail:  cfg.EmailSender,
			SupportEmail: cfg.EmailSupport,
		})
		if err != nil {
			log.Fatalf("Failed to create email sender: %v", err)
		}
	}

	// Services
	preferenceService := service.NewPreferenceService(preferenceRepo)
	notificationService := service.NewNotificationService(service.NotificationDeps{
		Repo:            notificationRepo,
		Users:           userRepo,
		Preferences:     preferenceService,
		Notifier:        registry,
		Push:            pushSender,
		Email:           emailSender,
		Translator:      translator,
		DefaultLanguage: cfg.DefaultLanguage,
		PublicBaseURL:   cfg.PublicBaseURL,
		DispatchTimeout: cfg.DeliveryTimeout,
		Logger:          logger,
	})
	unreadService := service.NewUnreadService(unreadRepo, registry, logger)
	pushTokenService := service.NewPushTokenService(pushTokenRepo)

	// a fresh stream starts with both badges
	onConnect := func(ctx context.Context, userID string) {
		notificationService.PushUnreadCount(ctx, userID)
		if err := unreadService.SendUnreadCountToUser(ctx, userID); err != nil {
			logger.Warn("initial_unread_count_failed", "user_id", userID, "error", err)
		}
	}

	router := newRouter(cfg, logger, routes{
		registry:      registry,
		presence:      tracker,
		onConnect:     onConnect,
		validator:     middleware.NewJWTValidator(cfg.JWTSecret),
		limiter:       middleware.NewUserRateLimiter(cfg.SubscribeRatePerMinute, 5),
		notifications: handler.NewNotificationHandler(notificationService),
		preferences:   handler.NewPreferenceHandler(preferenceService),
		pushTokens:    handler.NewPushTokenHandler(pushTokenService),
		presenceHTTP:  handler.NewPresenceHandler(tracker, registry),
		unread:        handler.NewUnreadHandler(unreadService),
	})

	go registry.StartHeartbeat(ctx, cfg.HeartbeatInterval, cfg.StaleConnectionTimeout)
	go runCleanup(ctx, notificationService, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting_http_server", "addr", srv.Addr, "env", cfg.GoEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		os.Exit(1)
	}

	// streams never finish on their own, close them before Shutdown waits
	registry.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}
	notificationService.Drain()
	logger.Info("server_stopped_gracefully")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// runCleanup deletes read notifications past the retention window
func runCleanup(ctx context.Context, svc service.NotificationService, cfg *config.Config, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := svc.Cleanup(ctx, cfg.NotificationRetentionDays)
			if err != nil {
				logger.Error("notification_cleanup_failed", "error", err)
				continue
			}
			logger.Info("notification_cleanup", "deleted", deleted, "retention_days", cfg.NotificationRetentionDays)
		}
	}
}
