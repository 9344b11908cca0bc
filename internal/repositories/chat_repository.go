package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrSelfChat     = errors.New("cannot create chat with self")
)

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
	SetLastMessage(ctx context.Context, chatID int, messageID int) error
	SoftDeleteChat(ctx context.Context, chatID int, userID int) (bool, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat creates a chat between two users if it does not already
// exist. Reusing a chat clears its deletion marks so the chat becomes
// visible to both sides again.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error) {
	if userID == friendID {
		return models.Chat{}, ErrSelfChat
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	var chat models.Chat
	query := `SELECT id, user1_id, user2_id, last_message_id, created_at FROM chats WHERE user1_id=$1 AND user2_id=$2`
	if err := r.db.GetContext(ctx, &chat, query, user1, user2); err != nil {
		if err != sql.ErrNoRows {
			return models.Chat{}, err
		}
		if err := r.db.QueryRowxContext(ctx, `INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2) RETURNING id, user1_id, user2_id, last_message_id, created_at`, user1, user2).
			StructScan(&chat); err != nil {
			return models.Chat{}, err
		}
		return chat, nil
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_deletions WHERE chat_id=$1`, chat.ID); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, user1_id, user2_id, last_message_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// ListChats returns chats visible to the user along with the per-chat
// unread count and the last message. A missing counter row reads as zero.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.last_message_id, c.created_at, COALESCE(u.unread, 0) AS unread
        FROM chats c
        LEFT JOIN chat_unread_counts u ON u.chat_id = c.id AND u.user_id = $1
        WHERE (c.user1_id=$1 OR c.user2_id=$1)
        AND NOT EXISTS (SELECT 1 FROM chat_deletions d WHERE d.chat_id = c.id AND d.user_id = $1)
        ORDER BY c.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type chatRow struct {
		models.Chat
		Unread int `db:"unread"`
	}

	var result []models.ChatSummary
	var lastMessageIDs []int64
	for rows.Next() {
		var row chatRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, models.ChatSummary{
			ChatID:   row.ID,
			FriendID: row.OtherUser(userID),
			Unread:   row.Unread,
			Created:  row.CreatedAt,
		})
		if row.LastMessageID != nil {
			lastMessageIDs = append(lastMessageIDs, *row.LastMessageID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lastMessageIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, chat_id, sender_id, receiver_id, text, status, created_at FROM messages WHERE id IN (?)`, lastMessageIDs)
	if err != nil {
		return nil, err
	}
	var lastMessages []models.Message
	if err := r.db.SelectContext(ctx, &lastMessages, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byChat := make(map[int]*models.Message, len(lastMessages))
	for i := range lastMessages {
		byChat[lastMessages[i].ChatID] = &lastMessages[i]
	}
	for i := range result {
		result[i].LastMessage = byChat[result[i].ChatID]
	}
	return result, nil
}

// SetLastMessage points the chat's last-message reference at messageID.
func (r *ChatRepo) SetLastMessage(ctx context.Context, chatID int, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message_id=$2 WHERE id=$1`, chatID, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}

// SoftDeleteChat marks the chat deleted for userID. Once both participants
// have deleted it, the chat and all its messages are removed permanently.
// Returns whether the chat was physically removed.
func (r *ChatRepo) SoftDeleteChat(ctx context.Context, chatID int, userID int) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chats WHERE id=$1)`, chatID); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrChatNotFound
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO chat_deletions (chat_id, user_id) VALUES ($1, $2)
        ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID); err != nil {
		return false, err
	}

	var deletions int
	if err := tx.GetContext(ctx, &deletions, `SELECT COUNT(*) FROM chat_deletions WHERE chat_id=$1`, chatID); err != nil {
		return false, err
	}

	removed := deletions >= 2
	if removed {
		// Messages, counters and deletion marks cascade from the chat row.
		if _, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}
