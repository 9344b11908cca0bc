package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// UnreadCounterStore holds per-chat, per-user unread counters. Counters
// never go below zero; a missing row reads as zero.
type UnreadCounterStore interface {
	Increment(ctx context.Context, chatID int, userID int) error
	ApplyDelta(ctx context.Context, chatID int, userID int, delta int) error
	TotalUnread(ctx context.Context, userID int) (int, error)
}

// UnreadCounterRepo is a sqlx implementation of UnreadCounterStore.
type UnreadCounterRepo struct {
	db *sqlx.DB
}

// NewUnreadCounterRepo constructs an UnreadCounterRepo.
func NewUnreadCounterRepo(db *sqlx.DB) *UnreadCounterRepo {
	return &UnreadCounterRepo{db: db}
}

// Increment bumps the user's unread counter for the chat by one.
func (r *UnreadCounterRepo) Increment(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_unread_counts (chat_id, user_id, unread) VALUES ($1, $2, 1)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET unread = chat_unread_counts.unread + 1`, chatID, userID)
	return err
}

// ApplyDelta adds delta to the user's counter for the chat, flooring the
// result at zero. The read-modify-write happens in one statement, so
// concurrent deltas for the same chat cannot lose updates.
func (r *UnreadCounterRepo) ApplyDelta(ctx context.Context, chatID int, userID int, delta int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_unread_counts (chat_id, user_id, unread) VALUES ($1, $2, GREATEST($3, 0))
        ON CONFLICT (chat_id, user_id) DO UPDATE SET unread = GREATEST(chat_unread_counts.unread + $3, 0)`, chatID, userID, delta)
	return err
}

// TotalUnread sums the user's counters over every chat they participate in.
func (r *UnreadCounterRepo) TotalUnread(ctx context.Context, userID int) (int, error) {
	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(u.unread), 0) FROM chat_unread_counts u
        JOIN chats c ON c.id = u.chat_id
        WHERE u.user_id=$1 AND (c.user1_id=$1 OR c.user2_id=$1)`, userID)
	return total, err
}
