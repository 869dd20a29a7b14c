package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"jam-service/internal/models"
	"jam-service/internal/observability"
)

// Hub maintains the per-group subscriber sets for active sessions. It is the
// publish primitive behind every "tell everyone in this group" path.
type Hub struct {
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]bool)}
}

// Add registers a connection with a group room.
func (h *Hub) Add(groupID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[groupID]; !ok {
		h.rooms[groupID] = make(map[*Client]bool)
	}
	h.rooms[groupID][client] = true
}

// Remove drops a connection from a group room.
func (h *Hub) Remove(groupID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[groupID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

// Broadcast sends an event to every connection joined to the group. A write
// failure means the connection went stale mid-broadcast: it is closed,
// evicted and otherwise swallowed.
func (h *Hub) Broadcast(groupID string, event models.SessionEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[groupID]))
	for client := range h.rooms[groupID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.Send(event); err != nil {
			log.Printf("websocket write group=%s conn=%s: %v", groupID, client.info.ConnID, err)
			client.close()
			h.Remove(groupID, client)
			h.publishConnEvent(client.info, "ws_error", err.Error())
		}
	}
}

func (h *Hub) publishConnEvent(info ConnInfo, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"group_id":    info.GroupID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"session_id": info.SessionID,
			"username":   info.Username,
			"ip":         info.IP,
			"device_id":  info.DeviceID,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.sessions", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(event)
}
