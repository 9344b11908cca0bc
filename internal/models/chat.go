package models

import "time"

// Chat represents a private chat between exactly two users.
type Chat struct {
	ID            int       `db:"id" json:"id"`
	User1ID       int       `db:"user1_id" json:"user1_id"`
	User2ID       int       `db:"user2_id" json:"user2_id"`
	LastMessageID *int64    `db:"last_message_id" json:"last_message_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether the user belongs to the chat.
func (c Chat) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherUser returns the participant that is not userID.
func (c Chat) OtherUser(userID int) int {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ChatSummary provides API-friendly view of a chat for a user.
type ChatSummary struct {
	ChatID      int       `json:"chat_id"`
	FriendID    int       `json:"friend_id"`
	Unread      int       `json:"unread"`
	LastMessage *Message  `json:"last_message,omitempty"`
	Created     time.Time `json:"created_at"`
}
