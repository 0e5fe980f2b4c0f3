package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMembershipTTL bounds how stale a participant list may be
const DefaultMembershipTTL = 5 * time.Minute

// MembershipSource reads active participants from the durable store
type MembershipSource interface {
	ActiveParticipantIDs(ctx context.Context, conversationID string) ([]string, error)
}

// MembershipCache answers "who is in this conversation" with a staleness
// window. A membership change inside the window does not retarget fan-out.
type MembershipCache interface {
	Members(ctx context.Context, conversationID string) ([]string, error)
	Invalidate(ctx context.Context, conversationID string)
}

type memoryEntry struct {
	members   []string
	expiresAt time.Time
}

// MemoryCache keeps participant lists in process
type MemoryCache struct {
	source MembershipSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCache(source MembershipSource, ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	return &MemoryCache{
		source:  source,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Members(ctx context.Context, conversationID string) ([]string, error) {
	c.mu.RLock()
	entry, ok := c.entries[conversationID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiresAt) {
		return slices.Clone(entry.members), nil
	}

	// loaded outside the lock, two concurrent misses may both hit the store
	members, err := c.source.ActiveParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load members of %s: %w", conversationID, err)
	}

	c.mu.Lock()
	c.entries[conversationID] = memoryEntry{members: members, expiresAt: c.now().Add(c.ttl)}
	// drop anything expired while we hold the lock anyway
	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	return slices.Clone(members), nil
}

func (c *MemoryCache) Invalidate(_ context.Context, conversationID string) {
	c.mu.Lock()
	delete(c.entries, conversationID)
	c.mu.Unlock()
}

// RedisCache shares participant lists between restarts with SET EX
type RedisCache struct {
	client *redis.Client
	source MembershipSource
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, source MembershipSource, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultMembershipTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, source: source, ttl: ttl, logger: logger}
}

func membershipKey(conversationID string) string {
	return fmt.Sprintf("presence:members:%s", conversationID)
}

// Members falls back to the durable store when redis is unavailable
func (c *RedisCache) Members(ctx context.Context, conversationID string) ([]string, error) {
	key := membershipKey(conversationID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var members []string
		if jerr := json.Unmarshal(raw, &members); jerr == nil {
			return members, nil
		}
		c.logger.Warn("membership_cache_corrupt", "conversation_id", conversationID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("membership_cache_unavailable", "conversation_id", conversationID, "error", err)
	}

	members, err := c.source.ActiveParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load members of %s: %w", conversationID, err)
	}

	if encoded, jerr := json.Marshal(members); jerr == nil {
		if serr := c.client.Set(ctx, key, encoded, c.ttl).Err(); serr != nil {
			c.logger.Warn("membership_cache_write_failed", "conversation_id", conversationID, "error", serr)
		}
	}
	return members, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, conversationID string) {
	if err := c.client.Del(ctx, membershipKey(conversationID)).Err(); err != nil {
		c.logger.Warn("membership_cache_invalidate_failed", "conversation_id", conversationID, "error", err)
	}
}
