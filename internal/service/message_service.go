package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

var (
	ErrInvalidStatus  = errors.New("invalid status value")
	ErrEmptyText      = errors.New("message text is required")
	ErrEmptyBatch     = errors.New("no message ids provided")
	ErrNoMessages     = errors.New("no messages found")
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// Deliverer pushes a payload to an online user. Delivery is best-effort and
// never blocks; offline recipients are a normal state.
type Deliverer interface {
	Deliver(userID int, payload []byte) bool
}

// MessageService owns message creation and the status state machine,
// keeping each chat's unread counters consistent with delivery state.
type MessageService struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	counters repositories.UnreadCounterStore
	router   Deliverer
	emitter  *telemetry.EventEmitter
}

// NewMessageService builds a MessageService.
func NewMessageService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	counters repositories.UnreadCounterStore,
	router Deliverer,
	emitter *telemetry.EventEmitter,
) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
		counters: counters,
		router:   router,
		emitter:  emitter,
	}
}

// CreateMessage persists a message with initial "sent" status, increments
// the receiver's unread counter for the chat and attempts a live push. When
// a dependent write fails after the message row landed, the message is
// rolled back so no orphaned, uncounted message remains.
func (s *MessageService) CreateMessage(ctx context.Context, senderID int, chatID int, receiverID int, text string) (models.Message, error) {
	if text == "" {
		return models.Message{}, ErrEmptyText
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Message{}, err
	}
	if senderID == receiverID || !chat.HasParticipant(senderID) || !chat.HasParticipant(receiverID) {
		return models.Message{}, ErrNotParticipant
	}

	msg, err := s.messages.CreateMessage(ctx, chatID, senderID, receiverID, text)
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	if err := s.counters.Increment(ctx, chatID, receiverID); err != nil {
		s.rollbackMessage(ctx, msg.ID)
		return models.Message{}, fmt.Errorf("increment unread counter: %w", err)
	}
	if err := s.chats.SetLastMessage(ctx, chatID, msg.ID); err != nil {
		if derr := s.counters.ApplyDelta(ctx, chatID, receiverID, -1); derr != nil {
			log.Printf("counter rollback failed for chat %d: %v", chatID, derr)
		}
		s.rollbackMessage(ctx, msg.ID)
		return models.Message{}, fmt.Errorf("update last message: %w", err)
	}

	observability.IncMessageCreated()
	s.deliver(receiverID, msg)
	s.emitter.Emit(ctx, telemetry.KeyMessageCreated, "message_created", msg)

	return msg, nil
}

// UpdateMessageStatus advances every message addressed to the acting user
// toward target. Messages the user sent themselves and messages that cannot
// move forward are skipped, not errors. For "read" batches exactly one
// floored counter delta is applied per affected chat. Returns the number of
// messages updated.
func (s *MessageService) UpdateMessageStatus(ctx context.Context, actingUserID int, target models.MessageStatus) (int, error) {
	if !target.Valid() {
		return 0, ErrInvalidStatus
	}

	msgs, err := s.messages.ListByReceiver(ctx, actingUserID)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, ErrNoMessages
	}

	var ids []int
	deltas := make(map[int]int)
	for _, m := range msgs {
		if m.SenderID == actingUserID {
			continue
		}
		if !m.Status.CanAdvanceTo(target) {
			continue
		}
		if target == models.StatusRead {
			deltas[m.ChatID]--
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.messages.UpdateStatusBatch(ctx, ids, target); err != nil {
		return 0, fmt.Errorf("update status batch: %w", err)
	}

	for chatID, delta := range deltas {
		if err := s.counters.ApplyDelta(ctx, chatID, actingUserID, delta); err != nil {
			return 0, fmt.Errorf("apply unread delta for chat %d: %w", chatID, err)
		}
	}

	observability.AddStatusTransitions(string(target), len(ids))
	s.emitter.Emit(ctx, telemetry.KeyStatusUpdated, "message_status_updated", map[string]any{
		"user_id": actingUserID,
		"status":  target,
		"updated": len(ids),
	})

	return len(ids), nil
}

// TotalUnread sums the user's unread counters over every chat they
// participate in.
func (s *MessageService) TotalUnread(ctx context.Context, userID int) (int, error) {
	return s.counters.TotalUnread(ctx, userID)
}

// GetChatMessages returns the chat history to a participant.
func (s *MessageService) GetChatMessages(ctx context.Context, userID int, chatID int) ([]models.Message, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return s.messages.GetChatMessages(ctx, chatID)
}

// DeleteMessages bulk-deletes messages owned by the requesting sender.
func (s *MessageService) DeleteMessages(ctx context.Context, userID int, messageIDs []int) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, ErrEmptyBatch
	}
	count, err := s.messages.DeleteMessagesBySender(ctx, userID, messageIDs)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, ErrNoMessages
	}
	return count, nil
}

// DeleteChat soft-deletes the chat for the user; once both participants
// have deleted it the chat and its messages are removed for good. Returns
// whether the chat was physically removed.
func (s *MessageService) DeleteChat(ctx context.Context, userID int, chatID int) (bool, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !chat.HasParticipant(userID) {
		return false, ErrNotParticipant
	}

	removed, err := s.chats.SoftDeleteChat(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if removed {
		s.emitter.Emit(ctx, telemetry.KeyChatDeleted, "chat_deleted", map[string]any{"chat_id": chatID})
	}
	return removed, nil
}

func (s *MessageService) rollbackMessage(ctx context.Context, messageID int) {
	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		log.Printf("message rollback failed for message %d: %v", messageID, err)
	}
}

func (s *MessageService) deliver(receiverID int, msg models.Message) {
	if s.router == nil {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	payload, err := json.Marshal(models.ChatEvent{Type: models.EventReceiveMessage, Message: raw})
	if err != nil {
		return
	}
	delivered := s.router.Deliver(receiverID, payload)
	observability.IncLiveDelivery(delivered)
}
