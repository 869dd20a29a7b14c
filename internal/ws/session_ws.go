package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"jam-service/internal/identity"
	"jam-service/internal/models"
	"jam-service/internal/observability"
	"jam-service/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionSocketHandler owns the websocket connection lifecycle: join, message
// dispatch, and the leave transition on disconnect.
type SessionSocketHandler struct {
	hub      *Hub
	sessions *session.Service
	resolver identity.Resolver
}

// NewSessionSocketHandler constructs a SessionSocketHandler.
func NewSessionSocketHandler(hub *Hub, sessions *session.Service, resolver identity.Resolver) *SessionSocketHandler {
	return &SessionSocketHandler{hub: hub, sessions: sessions, resolver: resolver}
}

// Handle upgrades the connection, attaches the participant to the group's
// session, delivers the snapshot, and runs the read loop until disconnect.
func (h *SessionSocketHandler) Handle(c *gin.Context) {
	groupID := c.Param("group_id")
	if groupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return
	}

	ctx, span := otel.Tracer("jam-service/ws").Start(c.Request.Context(), "ws.join")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
	}
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}

	participant, err := h.resolver.Resolve(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		GroupID:     groupID,
		SessionID:   participant.SessionID,
		Username:    participant.Username,
		Role:        participant.Role,
		IP:          observability.IPFromRequest(c.Request),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)

	// register before joining so the membership broadcast reaches this
	// connection too
	h.hub.Add(groupID, client)

	snapshot, queue, err := h.sessions.Join(ctx, groupID, participant)
	if err != nil {
		// join failures go to the initiating connection only
		client.SendError(joinErrorMessage(err))
		h.hub.Remove(groupID, client)
		client.close()
		return
	}

	_ = client.Send(models.SessionEvent{Type: models.EventSession, Session: &snapshot})
	_ = client.Send(models.SessionEvent{Type: models.EventQueue, Queue: queue})

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.hub.publishConnEvent(info, "ws_connect", "")

	go h.readLoop(client, groupID, participant)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		return "no active session"
	case errors.Is(err, session.ErrSessionFull):
		return "session is full"
	default:
		return "could not join session"
	}
}

func (h *SessionSocketHandler) readLoop(client *Client, groupID string, participant identity.Participant) {
	info := client.Info()
	var closeReason string
	defer func() {
		// Left must run exactly once per connection, even when the session
		// was already torn down
		if err := h.sessions.Leave(context.Background(), groupID, participant.SessionID); err != nil {
			log.Printf("leave group=%s session_id=%s: %v", groupID, participant.SessionID, err)
		}
		h.hub.Remove(groupID, client)
		client.close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.hub.publishConnEvent(info, "ws_disconnect", closeReason)
	}()

	for {
		var msg ClientMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		h.dispatch(context.Background(), client, groupID, participant, msg)
	}
}

// dispatch routes one inbound message. Failures are logged with the group and
// connection ids and reported back to the originating connection only.
func (h *SessionSocketHandler) dispatch(ctx context.Context, client *Client, groupID string, participant identity.Participant, msg ClientMessage) {
	var err error
	switch msg.Type {
	case msgAddTrack:
		_, _, err = h.sessions.AddTrack(ctx, groupID, participant, msg.Track, msg.TrackID, msg.Score)
	case msgUpvoteTrack:
		err = h.vote(ctx, groupID, participant, msg, 1)
	case msgDownvoteTrack:
		err = h.vote(ctx, groupID, participant, msg, -1)
	case msgReorderTrack:
		if msg.QueuedTrack == nil {
			err = session.ErrInvalidPayload
			break
		}
		_, err = h.sessions.Reorder(ctx, groupID, participant, *msg.QueuedTrack, msg.Score)
	case msgRemoveTrack:
		if msg.QueuedTrack == nil {
			err = session.ErrInvalidPayload
			break
		}
		_, err = h.sessions.RemoveTrack(ctx, groupID, *msg.QueuedTrack)
	case msgPlayback:
		err = h.sessions.Transport(ctx, groupID, participant, session.TransportCommand{
			Action:      msg.Action,
			TrackID:     msg.TrackID,
			PositionMs:  msg.PositionMs,
			DeviceID:    msg.DeviceID,
			AccessToken: msg.AccessToken,
		})
	case msgPlayerState:
		var cmd *models.SyncCommand
		cmd, err = h.sessions.ReportPlayerState(ctx, groupID, participant.SessionID, msg.TrackID, msg.PositionMs, msg.State)
		if err == nil && cmd != nil {
			_ = client.Send(models.SessionEvent{Type: models.EventPlaybackSync, Sync: cmd})
		}
	default:
		client.SendError("unknown message type")
		return
	}

	if err != nil {
		log.Printf("ws message type=%s group=%s conn=%s: %v", msg.Type, groupID, client.info.ConnID, err)
		client.SendError(err.Error())
	}
}

func (h *SessionSocketHandler) vote(ctx context.Context, groupID string, participant identity.Participant, msg ClientMessage, weight int) error {
	if msg.QueuedTrack == nil {
		return session.ErrInvalidPayload
	}
	_, err := h.sessions.Vote(ctx, groupID, participant.SessionID, *msg.QueuedTrack, weight)
	return err
}
