package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"jam-service/internal/models"
)

// Client is one websocket connection joined to a group session. Writes go
// through a mutex because broadcasts and direct replies come from different
// goroutines.
type Client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

// Info returns the connection descriptor.
func (c *Client) Info() ConnInfo {
	return c.info
}

// Send writes one event to this connection.
func (c *Client) Send(event models.SessionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteJSON(event)
}

// SendError reports a failure to this connection only.
func (c *Client) SendError(message string) {
	_ = c.Send(models.SessionEvent{Type: models.EventError, Error: message})
}

func (c *Client) close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
