package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationUnread is the unread message count of one active participation
type ConversationUnread struct {
	ConversationID string
	Unread         int
}

// UnreadRepository reads unread counts from the source of truth
type UnreadRepository interface {
	UnreadByConversation(ctx context.Context, userID string) ([]ConversationUnread, error)
}

type pgxUnreadRepository struct {
	pool *pgxpool.Pool
}

// NewUnreadRepository uses the raw pgx pool: the aggregate is one query and
// does not map to a gorm model.
func NewUnreadRepository(pool *pgxpool.Pool) UnreadRepository {
	return &pgxUnreadRepository{pool: pool}
}

// one row per active participation: messages from others after the last read mark
const unreadByConversationQuery = `
SELECT
    p.conversation_id::text,
    (
        SELECT COUNT(*)
        FROM conversation_messages m
        WHERE m.conversation_id = p.conversation_id
          AND m.author_id <> p.user_id
          AND (p.last_read_at IS NULL OR m.created_at > p.last_read_at)
    )::int AS unread
FROM conversation_participants p
WHERE p.user_id = $1 AND p.left_at IS NULL`

func (r *pgxUnreadRepository) UnreadByConversation(ctx context.Context, userID string) ([]ConversationUnread, error) {
	rows, err := r.pool.Query(ctx, unreadByConversationQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("query unread for %s: %w", userID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConversationUnread, error) {
		var cu ConversationUnread
		err := row.Scan(&cu.ConversationID, &cu.Unread)
		return cu, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan unread for %s: %w", userID, err)
	}
	return out, nil
}
