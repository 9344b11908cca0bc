package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dm-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID int, senderID int, receiverID int, text string) (models.Message, error)
	GetChatMessages(ctx context.Context, chatID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListByReceiver(ctx context.Context, receiverID int) ([]models.Message, error)
	UpdateStatusBatch(ctx context.Context, messageIDs []int, status models.MessageStatus) error
	DeleteMessage(ctx context.Context, messageID int) error
	DeleteMessagesBySender(ctx context.Context, senderID int, messageIDs []int) (int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with the initial "sent" status.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, receiverID int, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, receiver_id, text) VALUES ($1, $2, $3, $4)
        RETURNING id, chat_id, sender_id, receiver_id, text, status, created_at`, chatID, senderID, receiverID, text).
		StructScan(&msg)
	return msg, err
}

// GetChatMessages returns the chat history in creation order.
func (r *MessageRepo) GetChatMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, receiver_id, text, status, created_at
        FROM messages WHERE chat_id=$1 ORDER BY created_at ASC`, chatID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, chat_id, sender_id, receiver_id, text, status, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByReceiver returns every message addressed to the user.
func (r *MessageRepo) ListByReceiver(ctx context.Context, receiverID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, chat_id, sender_id, receiver_id, text, status, created_at
        FROM messages WHERE receiver_id=$1 ORDER BY created_at ASC`, receiverID)
	return msgs, err
}

// UpdateStatusBatch advances the status of all given messages in a single
// statement, so either every update lands or none of them do.
func (r *MessageRepo) UpdateStatusBatch(ctx context.Context, messageIDs []int, status models.MessageStatus) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET status=$1 WHERE id = ANY($2)`, status, pq.Array(messageIDs))
	return err
}

// DeleteMessage removes a single message row.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteMessagesBySender bulk-deletes messages, restricted to rows the
// requesting user sent. Returns the number of rows removed.
func (r *MessageRepo) DeleteMessagesBySender(ctx context.Context, senderID int, messageIDs []int) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE sender_id=$1 AND id = ANY($2)`, senderID, pq.Array(messageIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
