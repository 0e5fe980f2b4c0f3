// Package presence tracks which users have a conversation open right now
// and tells the other participants when that changes.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"conventionhub/internal/microservices/realtime"
)

var ErrNotParticipant = errors.New("user is not a participant of this conversation")

const (
	StatusJoined = "joined"
	StatusLeft   = "left"
)

// Notifier fans an event out to several users. *realtime.Registry implements it.
type Notifier interface {
	NotifyUsers(userIDs []string, ev realtime.Event) int
}

// Update is the presence_update payload
type Update struct {
	ConversationID string   `json:"conversationId"`
	UserID         string   `json:"userId"`
	Status         string   `json:"status"`
	PresentUsers   []string `json:"presentUsers"`
	Timestamp      int64    `json:"timestamp"`
}

// Tracker holds per-conversation presence in memory. It is rebuilt empty on
// restart; clients re-announce themselves when they reconnect.
type Tracker struct {
	members  MembershipCache
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	present map[string]map[string]struct{} // conversation -> users
}

type Option func(*Tracker)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(members MembershipCache, notifier Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		members:  members,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		present:  make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkPresent records userID in the conversation. Only the ABSENT to PRESENT
// transition fans out; repeats from client heartbeats return false.
func (t *Tracker) MarkPresent(ctx context.Context, conversationID, userID string) (bool, error) {
	members, err := t.members.Members(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if !slices.Contains(members, userID) {
		return false, ErrNotParticipant
	}

	t.mu.Lock()
	users, ok := t.present[conversationID]
	if !ok {
		users = make(map[string]struct{})
		t.present[conversationID] = users
	}
	if _, already := users[userID]; already {
		t.mu.Unlock()
		return false, nil
	}
	users[userID] = struct{}{}
	snapshot := sortedKeys(users)
	t.mu.Unlock()

	t.logger.Debug("presence_joined", "conversation_id", conversationID, "user_id", userID)
	t.fanOut(conversationID, userID, StatusJoined, snapshot, members)
	return true, nil
}

// MarkAbsent removes userID, dropping the conversation entry once empty.
// Membership is not checked: a user who just left the conversation must
// still be able to leave its presence.
func (t *Tracker) MarkAbsent(ctx context.Context, conversationID, userID string) (bool, error) {
	t.mu.Lock()
	users, ok := t.present[conversationID]
	if !ok {
		t.mu.Unlock()
		return false, nil
	}
	if _, here := users[userID]; !here {
		t.mu.Unlock()
		return false, nil
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.present, conversationID)
	}
	snapshot := sortedKeys(users)
	t.mu.Unlock()

	t.logger.Debug("presence_left", "conversation_id", conversationID, "user_id", userID)

	// the state change stands even if the fan-out cannot be addressed
	members, err := t.members.Members(ctx, conversationID)
	if err != nil {
		return true, fmt.Errorf("presence left but not announced: %w", err)
	}
	t.fanOut(conversationID, userID, StatusLeft, snapshot, members)
	return true, nil
}

// IsMember reports whether userID is an active participant of the conversation
func (t *Tracker) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	members, err := t.members.Members(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return slices.Contains(members, userID), nil
}

func (t *Tracker) IsPresent(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.present[conversationID][userID]
	return ok
}

// GetPresentUsers returns the present users sorted by id
func (t *Tracker) GetPresentUsers(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedKeys(t.present[conversationID])
}

func (t *Tracker) GetPresenceCount(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.present[conversationID])
}

// CleanupUser marks the user absent everywhere, used when their last
// connection is gone. It returns the number of conversations left.
func (t *Tracker) CleanupUser(ctx context.Context, userID string) int {
	return t.cleanup(ctx, userID, nil)
}

// CleanupIfOffline is CleanupUser for the disconnect path: isOnline is
// checked before each conversation and the walk stops as soon as the user
// has reconnected.
func (t *Tracker) CleanupIfOffline(ctx context.Context, userID string, isOnline func(userID string) bool) int {
	return t.cleanup(ctx, userID, isOnline)
}

func (t *Tracker) cleanup(ctx context.Context, userID string, isOnline func(string) bool) int {
	t.mu.Lock()
	var conversations []string
	for convID, users := range t.present {
		if _, ok := users[userID]; ok {
			conversations = append(conversations, convID)
		}
	}
	t.mu.Unlock()

	left := 0
	for _, convID := range conversations {
		if isOnline != nil && isOnline(userID) {
			t.logger.Debug("presence_cleanup_skipped", "user_id", userID, "reason", "reconnected")
			break
		}
		changed, err := t.MarkAbsent(ctx, convID, userID)
		if err != nil {
			t.logger.Warn("presence_cleanup_fanout_failed", "conversation_id", convID, "user_id", userID, "error", err)
		}
		if changed {
			left++
		}
	}
	if left > 0 {
		t.logger.Info("presence_cleaned_up", "user_id", userID, "conversations", left)
	}
	return left
}

// fanOut tells every other participant; the registry isolates per connection
func (t *Tracker) fanOut(conversationID, userID, status string, present, members []string) {
	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m != userID {
			recipients = append(recipients, m)
		}
	}
	if len(recipients) == 0 {
		return
	}

	ev, err := realtime.NewEvent(realtime.EventPresenceUpdate, Update{
		ConversationID: conversationID,
		UserID:         userID,
		Status:         status,
		PresentUsers:   present,
		Timestamp:      t.now().UnixMilli(),
	})
	if err != nil {
		t.logger.Error("presence_event_encode_failed", "error", err)
		return
	}
	t.notifier.NotifyUsers(recipients, ev)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
