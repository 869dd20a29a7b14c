package ws

import "time"

// ConnInfo describes one websocket connection for logging and eventing.
type ConnInfo struct {
	ConnID      string
	GroupID     string
	SessionID   string
	Username    string
	Role        string
	IP          string
	DeviceID    string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
