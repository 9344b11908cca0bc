package models

import "time"

// Message represents a direct message inside a chat.
type Message struct {
	ID         int           `db:"id" json:"id"`
	ChatID     int           `db:"chat_id" json:"chat_id"`
	SenderID   int           `db:"sender_id" json:"sender_id"`
	ReceiverID int           `db:"receiver_id" json:"receiver_id"`
	Text       string        `db:"text" json:"text"`
	Status     MessageStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}
