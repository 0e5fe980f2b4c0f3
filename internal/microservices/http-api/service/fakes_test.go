package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"conventionhub/internal/microservices/delivery"
	"conventionhub/internal/microservices/http-api/models"
	"conventionhub/internal/microservices/http-api/repository"
	"conventionhub/internal/microservices/realtime"
)

// memNotificationRepo is an in-memory NotificationRepository
type memNotificationRepo struct {
	mu      sync.Mutex
	records map[string]*models.Notification
	seq     int
	creates int
	failOn  error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{records: make(map[string]*models.Notification)}
}

func (r *memNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return r.failOn
	}
	r.creates++
	r.seq++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n%d", r.seq)
	}
	cp := *n
	r.records[n.ID] = &cp
	return nil
}

func (r *memNotificationRepo) GetByIDForUser(_ context.Context, id, userID string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok || n.UserID != userID {
		return nil, repository.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *memNotificationRepo) List(_ context.Context, f models.NotificationFilter) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.records {
		if n.UserID != f.UserID {
			continue
		}
		if f.IsRead != nil && n.IsRead != *f.IsRead {
			continue
		}
		if f.Category != nil && (n.Category == nil || *n.Category != *f.Category) {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memNotificationRepo) SetRead(_ context.Context, id, userID string, read bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotificationNotFound
	}
	n.IsRead = read
	n.ReadAt = nil
	if read {
		n.ReadAt = &at
	}
	return nil
}

func (r *memNotificationRepo) MarkAllAsRead(_ context.Context, userID string, category *string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.records {
		if n.UserID != userID || n.IsRead {
			continue
		}
		if category != nil && (n.Category == nil || *n.Category != *category) {
			continue
		}
		n.IsRead = true
		n.ReadAt = &at
		count++
	}
	return count, nil
}

func (r *memNotificationRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.records[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotificationNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memNotificationRepo) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.records {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.records, id)
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) CountUnread(_ context.Context, userID string, category *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.records {
		if n.UserID == userID && !n.IsRead && (category == nil || (n.Category != nil && *n.Category == *category)) {
			count++
		}
	}
	return count, nil
}

func (r *memNotificationRepo) Stats(_ context.Context, userID string) (*models.NotificationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.NotificationStats{ByKind: make(map[models.Kind]int64)}
	for _, n := range r.records {
		if n.UserID != userID {
			continue
		}
		stats.Total++
		if !n.IsRead {
			stats.Unread++
		}
		stats.ByKind[n.Kind]++
	}
	return stats, nil
}

func (r *memNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

type memUsers map[string]models.User

func (u memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (u memUsers) FindByIDs(_ context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if user, ok := u[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

// memPreferenceRepo stores overrides keyed by user and category
type memPreferenceRepo struct {
	mu    sync.Mutex
	prefs map[[2]string]models.NotificationPreference
	err   error
}

func newMemPreferenceRepo(prefs ...models.NotificationPreference) *memPreferenceRepo {
	r := &memPreferenceRepo{prefs: make(map[[2]string]models.NotificationPreference)}
	for _, p := range prefs {
		r.prefs[[2]string{p.UserID, p.Category}] = p
	}
	return r
}

func (r *memPreferenceRepo) ListByUser(_ context.Context, userID string) ([]models.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.NotificationPreference
	for k, p := range r.prefs {
		if k[0] == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPreferenceRepo) FindOne(_ context.Context, userID, category string) (*models.NotificationPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.prefs[[2]string{userID, category}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memPreferenceRepo) Upsert(_ context.Context, prefs []models.NotificationPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range prefs {
		r.prefs[[2]string{p.UserID, p.Category}] = p
	}
	return nil
}

// recordingSink counts pushes per event name
type recordingSink struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (s *recordingSink) Push(ev realtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close() {}

func (s *recordingSink) named(name string) []realtime.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []realtime.Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type recordingPush struct {
	mu   sync.Mutex
	sent []delivery.PushMessage
	err  error
}

func (p *recordingPush) Send(_ context.Context, msg delivery.PushMessage) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	if p.err != nil {
		return false, p.err
	}
	return true, nil
}

func (p *recordingPush) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type recordingEmail struct {
	mu    sync.Mutex
	sent  []delivery.EmailMessage
	panic bool
}

func (e *recordingEmail) Send(_ context.Context, msg delivery.EmailMessage) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.panic {
		panic("smtp exploded")
	}
	e.sent = append(e.sent, msg)
	return true, nil
}

func (e *recordingEmail) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

var errStoreDown = errors.New("store unavailable")
