package service

import (
	"context"
	"fmt"

	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/repository"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

type PushTokenService interface {
	Register(ctx context.Context, userID, token, platform string) error
	Unregister(ctx context.Context, userID, token string) error
}

type pushTokenService struct {
	repo repository.PushTokenRepository
}

func NewPushTokenService(repo repository.PushTokenRepository) PushTokenService {
	return &pushTokenService{repo: repo}
}

// Register rejects anything that is not an Expo push token
func (s *pushTokenService) Register(ctx context.Context, userID, token, platform string) error {
	if _, err := expo.NewExponentPushToken(token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.repo.Save(ctx, &models.PushToken{UserID: userID, Token: token, Platform: platform})
}

func (s *pushTokenService) Unregister(ctx context.Context, userID, token string) error {
	return s.repo.Delete(ctx, userID, token)
}
