package ws

import "jam-service/internal/models"

// Inbound message types.
const (
	msgAddTrack      = "add-track"
	msgUpvoteTrack   = "upvote-track"
	msgDownvoteTrack = "downvote-track"
	msgReorderTrack  = "reorder-track"
	msgRemoveTrack   = "remove-track"
	msgPlayback      = "playback"
	msgPlayerState   = "player-state"
)

// ClientMessage is the envelope for all inbound websocket messages. Delivery
// is at-least-once; every handler behind it is idempotent.
type ClientMessage struct {
	Type        string              `json:"type"`
	Track       *models.Track       `json:"track,omitempty"`
	TrackID     string              `json:"track_id,omitempty"`
	QueuedTrack *models.QueuedTrack `json:"queued_track,omitempty"`
	Score       int                 `json:"score,omitempty"`
	Action      string              `json:"action,omitempty"`
	PositionMs  int64               `json:"position_ms,omitempty"`
	State       string              `json:"state,omitempty"`
	DeviceID    string              `json:"device_id,omitempty"`
	AccessToken string              `json:"access_token,omitempty"`
}
