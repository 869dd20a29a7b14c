package models

import "time"

// Participant roles.
const (
	RoleAdmin         = "admin"
	RoleAuthenticated = "authenticated"
	RoleGuest         = "guest"
)

// Session rule values.
const (
	VotingUpvoteOnly     = "upvote-only"
	VotingUpvoteDownvote = "upvote-downvote"

	QueueCollaborative = "collaborative"
	QueueHostOnly      = "host-only"

	PlaybackEqual        = "equal"
	PlaybackHierarchical = "hierarchical"
)

// Playback states.
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// Member is one connected identity inside a session.
type Member struct {
	SessionID          string    `json:"session_id"`
	Username           string    `json:"username"`
	AvatarURL          string    `json:"avatar_url,omitempty"`
	Provider           string    `json:"provider,omitempty"`
	ProviderAccountURL string    `json:"provider_account_url,omitempty"`
	Role               string    `json:"role"`
	VoteCount          int       `json:"vote_count"`
	JoinTime           time.Time `json:"join_time"`
}

// Vote records one participant's vote on one track. A (voter, track) pair has
// at most one entry; changing direction flips the stored weight in place.
type Vote struct {
	TrackID   string    `json:"track_id"`
	VoterID   string    `json:"voter_id"`
	Weight    int       `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// NowPlaying is the authoritative pointer to the track the group is hearing.
type NowPlaying struct {
	Track           Track     `json:"track"`
	State           string    `json:"state"`
	ProgressMs      int64     `json:"progress_ms"`
	InitiatedBy     string    `json:"initiated_by"`
	ClientUpdatedAt time.Time `json:"client_updated_at"`
	ServerSyncedAt  time.Time `json:"server_synced_at"`
}

// SessionSettings are the admin-tunable rules of a session.
type SessionSettings struct {
	MaxParticipants        int    `json:"max_participants,omitempty"`
	VotingMode             string `json:"voting_mode"`
	QueueMode              string `json:"queue_mode"`
	PlaybackMode           string `json:"playback_mode"`
	VoteSystemEnabled      bool   `json:"vote_system_enabled"`
	QueueReorderingEnabled bool   `json:"queue_reordering_enabled"`
	RepeatEnabled          bool   `json:"repeat_enabled"`
}

// SessionMetadata is bookkeeping about the aggregate itself.
type SessionMetadata struct {
	SessionStart time.Time `json:"session_start"`
	LastUpdated  time.Time `json:"last_updated"`
	MembersCount int       `json:"members_count"`
}

// GroupSession is the ephemeral aggregate of one group's live listening
// activity, keyed by group id.
type GroupSession struct {
	GroupID      string          `json:"group_id"`
	Platform     string          `json:"platform"`
	Participants []Member        `json:"participants"`
	Votes        []Vote          `json:"votes"`
	NowPlaying   *NowPlaying     `json:"now_playing,omitempty"`
	Settings     SessionSettings `json:"settings"`
	Metadata     SessionMetadata `json:"metadata"`
}

// FindMember returns the member with the given session id, if joined.
func (s *GroupSession) FindMember(sessionID string) *Member {
	for i := range s.Participants {
		if s.Participants[i].SessionID == sessionID {
			return &s.Participants[i]
		}
	}
	return nil
}

// AddMember appends a member. Invariant: members count always equals the
// participant list length, so membership only mutates through AddMember and
// RemoveMember.
func (s *GroupSession) AddMember(m Member) {
	s.Participants = append(s.Participants, m)
	s.Metadata.MembersCount = len(s.Participants)
	s.Metadata.LastUpdated = time.Now()
}

// RemoveMember drops the member with the given session id and reports whether
// it was present.
func (s *GroupSession) RemoveMember(sessionID string) bool {
	for i := range s.Participants {
		if s.Participants[i].SessionID == sessionID {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			s.Metadata.MembersCount = len(s.Participants)
			s.Metadata.LastUpdated = time.Now()
			return true
		}
	}
	return false
}

// VoteBy returns the recorded vote by voter on track, if any. The ledger is
// the source of truth for whether a voter already acted on a track.
func (s *GroupSession) VoteBy(voterID, trackID string) *Vote {
	for i := range s.Votes {
		if s.Votes[i].VoterID == voterID && s.Votes[i].TrackID == trackID {
			return &s.Votes[i]
		}
	}
	return nil
}

// Clone returns a copy that shares no slice storage with the receiver, so a
// caller's read-modify-write cannot leak partial writes into the store.
func (s GroupSession) Clone() GroupSession {
	out := s
	out.Participants = append([]Member(nil), s.Participants...)
	out.Votes = append([]Vote(nil), s.Votes...)
	if s.NowPlaying != nil {
		np := *s.NowPlaying
		out.NowPlaying = &np
	}
	return out
}
