package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jam-service/internal/models"
)

// connPair dials a throwaway websocket server and hands back both ends.
func connPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-accepted
	t.Cleanup(func() { server.Close() })
	return server, client
}

func readEvent(t *testing.T, conn *websocket.Conn) models.SessionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event models.SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestBroadcastReachesEveryRoomMember(t *testing.T) {
	hub := NewHub()

	serverA, clientA := connPair(t)
	serverB, clientB := connPair(t)
	serverC, clientC := connPair(t)

	hub.Add("g1", NewClient(serverA, ConnInfo{ConnID: "a", GroupID: "g1"}))
	hub.Add("g1", NewClient(serverB, ConnInfo{ConnID: "b", GroupID: "g1"}))
	hub.Add("g2", NewClient(serverC, ConnInfo{ConnID: "c", GroupID: "g2"}))

	hub.Broadcast("g1", models.SessionEvent{Type: models.EventSessionEnded})

	assert.Equal(t, models.EventSessionEnded, readEvent(t, clientA).Type)
	assert.Equal(t, models.EventSessionEnded, readEvent(t, clientB).Type)

	// the other room hears nothing
	require.NoError(t, clientC.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var event models.SessionEvent
	assert.Error(t, clientC.ReadJSON(&event))
}

func TestBroadcastEvictsStaleConnections(t *testing.T) {
	hub := NewHub()

	serverA, clientA := connPair(t)
	serverB, _ := connPair(t)

	live := NewClient(serverA, ConnInfo{ConnID: "live", GroupID: "g1"})
	stale := NewClient(serverB, ConnInfo{ConnID: "stale", GroupID: "g1"})
	hub.Add("g1", live)
	hub.Add("g1", stale)

	// a closed peer makes the next write fail
	serverB.Close()

	hub.Broadcast("g1", models.SessionEvent{Type: models.EventMembers})
	assert.Equal(t, models.EventMembers, readEvent(t, clientA).Type)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Len(t, hub.rooms["g1"], 1)
	assert.NotContains(t, hub.rooms["g1"], stale)
}

func TestRemoveDropsEmptyRooms(t *testing.T) {
	hub := NewHub()
	client := NewClient(nil, ConnInfo{ConnID: "a", GroupID: "g1"})

	hub.Add("g1", client)
	hub.Remove("g1", client)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	assert.Empty(t, hub.rooms)
}

func TestBroadcastToUnknownGroupIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.Broadcast("ghost", models.SessionEvent{Type: models.EventQueue})
	})
}
