// Package delivery holds the outbound side channels of a notification:
// mobile push through Expo and email through Postmark.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"conventionhub/internal/microservices/http-api/models"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

var ErrNoPushTokens = errors.New("user has no push tokens")

// PushMessage is one push notification for one user
type PushMessage struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]any
}

// PushSender reports true when at least one of the user's devices accepted the message
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) (bool, error)
}

// TokenStore is the part of the push token repository the sender needs
type TokenStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushToken, error)
	DeleteByToken(ctx context.Context, token string) error
}

// publisher is satisfied by *expo.PushClient
type publisher interface {
	PublishMultiple(messages []expo.PushMessage) ([]expo.PushResponse, error)
}

type ExpoSender struct {
	client publisher
	tokens TokenStore
	logger *slog.Logger
}

// NewExpoSender talks to the Expo push API, accessToken may be empty for
// projects without enhanced push security
func NewExpoSender(accessToken string, tokens TokenStore, logger *slog.Logger) *ExpoSender {
	var cfg *expo.ClientConfig
	if accessToken != "" {
		cfg = &expo.ClientConfig{AccessToken: accessToken}
	}
	return newExpoSender(expo.NewPushClient(cfg), tokens, logger)
}

func newExpoSender(client publisher, tokens TokenStore, logger *slog.Logger) *ExpoSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpoSender{client: client, tokens: tokens, logger: logger}
}

func (s *ExpoSender) Send(ctx context.Context, msg PushMessage) (bool, error) {
	tokens, err := s.tokens.ListByUser(ctx, msg.UserID)
	if err != nil {
		return false, fmt.Errorf("list push tokens: %w", err)
	}

	messages := make([]expo.PushMessage, 0, len(tokens))
	for _, t := range tokens {
		pushToken, err := expo.NewExponentPushToken(t.Token)
		if err != nil {
			s.logger.Warn("push_token_invalid", "user_id", msg.UserID, "token_id", t.ID)
			continue
		}
		messages = append(messages, expo.PushMessage{
			To:       []expo.ExponentPushToken{pushToken},
			Sound:    "default",
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     toStringMap(msg.Data),
			Priority: expo.DefaultPriority,
		})
	}
	if len(messages) == 0 {
		return false, ErrNoPushTokens
	}

	responses, err := s.client.PublishMultiple(messages)
	if err != nil {
		return false, fmt.Errorf("expo publish: %w", err)
	}

	delivered := false
	for i := range responses {
		verr := responses[i].ValidateResponse()
		if verr == nil {
			delivered = true
			continue
		}
		var notRegistered *expo.DeviceNotRegisteredError
		if errors.As(verr, &notRegistered) && i < len(messages) {
			token := string(messages[i].To[0])
			if derr := s.tokens.DeleteByToken(ctx, token); derr != nil {
				s.logger.Error("push_token_cleanup_failed", "user_id", msg.UserID, "error", derr)
			}
		}
		s.logger.Warn("push_rejected", "user_id", msg.UserID, "error", verr)
	}
	return delivered, nil
}

// Expo only carries string data values
func toStringMap(input map[string]any) map[string]string {
	if len(input) == 0 {
		return nil
	}
	result := make(map[string]string, len(input))
	for key, value := range input {
		if s, ok := value.(string); ok {
			result[key] = s
		} else {
			result[key] = fmt.Sprintf("%v", value)
		}
	}
	return result
}

// LogPushSender is used when push is disabled: it only logs, and reports
// the message as accepted so a disabled channel is not a failed one
type LogPushSender struct {
	Logger *slog.Logger
}

func (s LogPushSender) Send(_ context.Context, msg PushMessage) (bool, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("push_skipped", "user_id", msg.UserID, "title", msg.Title)
	return true, nil
}
