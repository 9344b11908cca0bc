package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	ConnectedAt time.Time
}
