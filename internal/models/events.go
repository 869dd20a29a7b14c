package models

// Event types emitted over group websocket connections.
const (
	EventSession      = "group-session"
	EventQueue        = "group-queue"
	EventMembers      = "group-members"
	EventNewTrack     = "group-new-track"
	EventPlayback     = "group-playback"
	EventSettings     = "group-settings"
	EventPlaybackSync = "playback-sync"
	EventSessionEnded = "session-ended"
	EventError        = "error"
)

// SyncCommand tells a single client how to converge on the shared playback
// state. Sent only to the reporting connection, never broadcast.
type SyncCommand struct {
	Action     string `json:"action"` // load, seek, play, pause
	Track      *Track `json:"track,omitempty"`
	PositionMs int64  `json:"position_ms"`
	State      string `json:"state,omitempty"`
}

// SessionEvent is the envelope broadcast through websockets.
type SessionEvent struct {
	Type       string           `json:"type"`
	Session    *GroupSession    `json:"session,omitempty"`
	Queue      []ScoredTrack    `json:"queue,omitempty"`
	Members    []Member         `json:"members,omitempty"`
	Track      *ScoredTrack     `json:"track,omitempty"`
	NowPlaying *NowPlaying      `json:"now_playing,omitempty"`
	Settings   *SessionSettings `json:"settings,omitempty"`
	Sync       *SyncCommand     `json:"sync,omitempty"`
	Error      string           `json:"error,omitempty"`
}
