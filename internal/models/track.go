package models

import "time"

// Track is provider-side metadata for a playable track.
type Track struct {
	ID         string `json:"id"`
	URI        string `json:"uri,omitempty"`
	Name       string `json:"name,omitempty"`
	Artist     string `json:"artist,omitempty"`
	AlbumArt   string `json:"album_art,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// AddedBy identifies the participant who queued a track.
type AddedBy struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username,omitempty"`
}

// QueuedTrack is a track placed on a group's queue.
type QueuedTrack struct {
	Track   Track     `json:"track"`
	AddedBy AddedBy   `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Identity is the key used to dedupe queue entries. A track can sit on the
// queue only once at a time, regardless of who added it.
func (q QueuedTrack) Identity() string {
	return q.Track.ID
}

// ScoredTrack is the externally visible queue entry with its vote-adjusted rank.
type ScoredTrack struct {
	QueuedTrack
	Score int `json:"score"`
}
