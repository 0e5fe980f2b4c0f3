package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/repository"
)

type PreferenceService interface {
	GetPreferences(ctx context.Context, userID string) (*models.PreferenceSet, error)
	IsAllowed(ctx context.Context, userID, category string) (bool, error)
	IsEmailAllowed(ctx context.Context, userID, category string) (bool, error)
	UpdatePreferences(ctx context.Context, userID string, inApp, email map[string]bool) (*models.PreferenceSet, error)
	Categories() []string
}

type preferenceService struct {
	repo repository.PreferenceRepository
	now  func() time.Time
}

func NewPreferenceService(repo repository.PreferenceRepository) PreferenceService {
	return &preferenceService{repo: repo, now: time.Now}
}

// GetPreferences lays the stored overrides on top of an all-enabled default
func (s *preferenceService) GetPreferences(ctx context.Context, userID string) (*models.PreferenceSet, error) {
	overrides, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	set := &models.PreferenceSet{
		UserID: userID,
		InApp:  make(map[string]bool, len(models.KnownCategories)),
		Email:  make(map[string]bool, len(models.KnownCategories)),
	}
	for _, c := range models.KnownCategories {
		set.InApp[c] = true
		set.Email[c] = true
	}
	for _, o := range overrides {
		set.InApp[o.Category] = o.InAppEnabled
		set.Email[o.Category] = o.EmailEnabled
	}
	return set, nil
}

func (s *preferenceService) IsAllowed(ctx context.Context, userID, category string) (bool, error) {
	pref, err := s.repo.FindOne(ctx, userID, category)
	if err != nil {
		return false, fmt.Errorf("load preference: %w", err)
	}
	return pref == nil || pref.InAppEnabled, nil
}

func (s *preferenceService) IsEmailAllowed(ctx context.Context, userID, category string) (bool, error) {
	pref, err := s.repo.FindOne(ctx, userID, category)
	if err != nil {
		return false, fmt.Errorf("load preference: %w", err)
	}
	return pref == nil || pref.EmailEnabled, nil
}

// UpdatePreferences writes only the categories present in either map, the
// flag not mentioned for a category keeps its current value. The returned
// set is read back after the write.
func (s *preferenceService) UpdatePreferences(ctx context.Context, userID string, inApp, email map[string]bool) (*models.PreferenceSet, error) {
	for _, m := range []map[string]bool{inApp, email} {
		for category := range m {
			if !slices.Contains(models.KnownCategories, category) {
				return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
			}
		}
	}

	current, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{})
	for c := range inApp {
		touched[c] = struct{}{}
	}
	for c := range email {
		touched[c] = struct{}{}
	}

	now := s.now()
	rows := make([]models.NotificationPreference, 0, len(touched))
	for c := range touched {
		row := models.NotificationPreference{
			UserID:       userID,
			Category:     c,
			InAppEnabled: current.Allows(c),
			EmailEnabled: current.AllowsEmail(c),
			UpdatedAt:    now,
		}
		if v, ok := inApp[c]; ok {
			row.InAppEnabled = v
		}
		if v, ok := email[c]; ok {
			row.EmailEnabled = v
		}
		rows = append(rows, row)
	}

	if err := s.repo.Upsert(ctx, rows); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}
	// answer with what the store now holds
	return s.GetPreferences(ctx, userID)
}

func (s *preferenceService) Categories() []string {
	return slices.Clone(models.KnownCategories)
}
