package models

import "encoding/json"

// ChatEvent is broadcasted through websockets.
type ChatEvent struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	Users   []int           `json:"users,omitempty"`
}

// Event types carried over the real-time channel.
const (
	EventUsersOnline    = "users_online"
	EventReceiveMessage = "receive_message"
)
