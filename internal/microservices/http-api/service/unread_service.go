package service

import (
	"context"
	"log/slog"

	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/repository"
	"conventionhub/internal/microservices/realtime"

	"golang.org/x/sync/errgroup"
)

// fanoutConcurrency bounds the recomputations of SendUnreadCountToUsers
const fanoutConcurrency = 8

// UnreadService is the messenger badge. Counts are always recomputed from
// the store, there is no running counter to drift.
type UnreadService interface {
	GetUnreadCount(ctx context.Context, userID string) (models.UnreadCount, error)
	SendUnreadCountToUser(ctx context.Context, userID string) error
	SendUnreadCountToUsers(ctx context.Context, userIDs []string)
}

type unreadService struct {
	repo     repository.UnreadRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewUnreadService(repo repository.UnreadRepository, notifier Notifier, logger *slog.Logger) UnreadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &unreadService{repo: repo, notifier: notifier, logger: logger}
}

func (s *unreadService) GetUnreadCount(ctx context.Context, userID string) (models.UnreadCount, error) {
	rows, err := s.repo.UnreadByConversation(ctx, userID)
	if err != nil {
		return models.UnreadCount{}, err
	}
	out := models.UnreadCount{ConversationCount: len(rows)}
	for _, r := range rows {
		out.UnreadCount += r.Unread
	}
	return out, nil
}

func (s *unreadService) SendUnreadCountToUser(ctx context.Context, userID string) error {
	count, err := s.GetUnreadCount(ctx, userID)
	if err != nil {
		return err
	}
	ev, err := realtime.NewEvent(realtime.EventUnreadCount, count)
	if err != nil {
		return err
	}
	s.notifier.NotifyUser(userID, ev)
	return nil
}

// SendUnreadCountToUsers refreshes each user independently, a failure for
// one recipient is logged and does not stop the rest
func (s *unreadService) SendUnreadCountToUsers(ctx context.Context, userIDs []string) {
	var g errgroup.Group
	g.SetLimit(fanoutConcurrency)
	for _, id := range userIDs {
		g.Go(func() error {
			if err := s.SendUnreadCountToUser(ctx, id); err != nil {
				s.logger.Warn("unread_count_push_failed", "user_id", id, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
