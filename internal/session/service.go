package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"jam-service/internal/identity"
	"jam-service/internal/models"
	"jam-service/internal/observability"
	"jam-service/internal/provider"
	"jam-service/internal/queue"
	"jam-service/internal/repositories"
	"jam-service/internal/store"
)

// Broadcaster fans an event out to every connection joined to a group.
type Broadcaster interface {
	Broadcast(groupID string, event models.SessionEvent)
}

// Service is the group-session coordination core: session lifecycle,
// membership, the vote ledger and the ranked queue all mutate through it.
type Service struct {
	store     store.SessionStore
	index     queue.Index
	groups    repositories.GroupRepository
	tracks    provider.TrackResolver
	commander provider.PlaybackCommander
	events    Broadcaster

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the coordination core.
func NewService(st store.SessionStore, idx queue.Index, groups repositories.GroupRepository, tracks provider.TrackResolver, commander provider.PlaybackCommander, events Broadcaster) *Service {
	return &Service{
		store:     st,
		index:     idx,
		groups:    groups,
		tracks:    tracks,
		commander: commander,
		events:    events,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing all aggregate mutations for one group.
// Different groups proceed fully in parallel.
func (s *Service) lock(groupID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[groupID] = l
	}
	return l
}

func (s *Service) getSession(ctx context.Context, groupID string) (models.GroupSession, error) {
	session, err := s.store.Get(ctx, groupID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return models.GroupSession{}, ErrNoActiveSession
	}
	return session, err
}

func (s *Service) replaceSession(ctx context.Context, session models.GroupSession) error {
	err := s.store.Replace(ctx, session)
	if errors.Is(err, store.ErrSessionNotFound) {
		return ErrNoActiveSession
	}
	return err
}

// Start creates the singleton session for a group and marks the group active.
func (s *Service) Start(ctx context.Context, groupID string, requester identity.Participant, platform string, maxParticipants int) (models.GroupSession, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.GroupSession{}, err
	}
	if platform == "" {
		platform = group.Platform
	}

	now := time.Now()
	session := models.GroupSession{
		GroupID:      groupID,
		Platform:     platform,
		Participants: []models.Member{},
		Votes:        []models.Vote{},
		Settings: models.SessionSettings{
			MaxParticipants:        maxParticipants,
			VotingMode:             models.VotingUpvoteDownvote,
			QueueMode:              models.QueueCollaborative,
			PlaybackMode:           models.PlaybackEqual,
			VoteSystemEnabled:      true,
			QueueReorderingEnabled: true,
		},
		Metadata: models.SessionMetadata{SessionStart: now, LastUpdated: now},
	}

	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, store.ErrSessionExists) {
			return models.GroupSession{}, ErrSessionExists
		}
		return models.GroupSession{}, err
	}

	if err := s.groups.SetActive(ctx, groupID, true); err != nil {
		log.Printf("session start group=%s: set active flag: %v", groupID, err)
	}

	observability.IncActiveSessions()
	_ = observability.PublishEvent(ctx, "session_events.started", observability.EventEnvelope{
		EventType: "session_events",
		EventName: "session_started",
		Payload: map[string]interface{}{
			"group_id":   groupID,
			"platform":   platform,
			"started_by": requester.SessionID,
		},
	}, nil)

	log.Printf("session started group=%s platform=%s by=%s", groupID, platform, requester.SessionID)
	return session, nil
}

// Stop tears the session down: the aggregate and the ranking index go
// together, and the group's active flag is cleared.
func (s *Service) Stop(ctx context.Context, groupID string) error {
	l := s.lock(groupID)
	l.Lock()
	err := s.store.Destroy(ctx, groupID)
	if errors.Is(err, store.ErrSessionNotFound) {
		l.Unlock()
		return ErrNoActiveSession
	}
	if err != nil {
		l.Unlock()
		return err
	}
	if err := s.index.Destroy(ctx, groupID); err != nil {
		log.Printf("session stop group=%s: destroy queue index: %v", groupID, err)
	}
	l.Unlock()

	if err := s.groups.SetActive(ctx, groupID, false); err != nil {
		log.Printf("session stop group=%s: clear active flag: %v", groupID, err)
	}

	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventSessionEnded})
	observability.DecActiveSessions()
	_ = observability.PublishEvent(ctx, "session_events.stopped", observability.EventEnvelope{
		EventType: "session_events",
		EventName: "session_stopped",
		Payload:   map[string]interface{}{"group_id": groupID},
	}, nil)

	log.Printf("session stopped group=%s", groupID)
	return nil
}

// Snapshot returns the current aggregate and ranked queue.
func (s *Service) Snapshot(ctx context.Context, groupID string) (models.GroupSession, []models.ScoredTrack, error) {
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		return models.GroupSession{}, nil, err
	}
	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return models.GroupSession{}, nil, err
	}
	return session, tracks, nil
}

// Join attaches a participant to the group's session and returns the snapshot
// to deliver to the new connection. Rejoining with a session id that is
// already a member is a membership no-op.
func (s *Service) Join(ctx context.Context, groupID string, p identity.Participant) (models.GroupSession, []models.ScoredTrack, error) {
	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return models.GroupSession{}, nil, err
	}

	if max := session.Settings.MaxParticipants; max > 0 && session.Metadata.MembersCount >= max {
		l.Unlock()
		return models.GroupSession{}, nil, ErrSessionFull
	}

	if session.FindMember(p.SessionID) == nil {
		session.AddMember(p.Member())
		if err := s.replaceSession(ctx, session); err != nil {
			l.Unlock()
			return models.GroupSession{}, nil, err
		}
	}
	members := append([]models.Member(nil), session.Participants...)
	l.Unlock()

	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return models.GroupSession{}, nil, err
	}

	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventMembers, Members: members})
	log.Printf("participant joined group=%s session_id=%s members=%d", groupID, p.SessionID, len(members))
	return session, tracks, nil
}

// Leave detaches a participant. Runs on every disconnect; if the session was
// already torn down, or the member never joined, it is a silent no-op.
func (s *Service) Leave(ctx context.Context, groupID, sessionID string) error {
	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if errors.Is(err, ErrNoActiveSession) {
		l.Unlock()
		return nil
	}
	if err != nil {
		l.Unlock()
		return err
	}

	if !session.RemoveMember(sessionID) {
		l.Unlock()
		return nil
	}
	if err := s.replaceSession(ctx, session); err != nil {
		l.Unlock()
		if errors.Is(err, ErrNoActiveSession) {
			return nil
		}
		return err
	}
	members := append([]models.Member(nil), session.Participants...)
	l.Unlock()

	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventMembers, Members: members})
	log.Printf("participant left group=%s session_id=%s members=%d", groupID, sessionID, len(members))
	return nil
}

// AddTrack inserts a track into the ranked queue. The payload may carry full
// metadata or a bare track id to resolve through the provider.
func (s *Service) AddTrack(ctx context.Context, groupID string, actor identity.Participant, track *models.Track, trackID string, score int) (models.ScoredTrack, []models.ScoredTrack, error) {
	if track == nil && trackID == "" {
		return models.ScoredTrack{}, nil, fmt.Errorf("%w: missing track data", ErrInvalidPayload)
	}

	session, err := s.getSession(ctx, groupID)
	if err != nil {
		return models.ScoredTrack{}, nil, err
	}
	if session.Settings.QueueMode == models.QueueHostOnly && actor.Role != models.RoleAdmin {
		return models.ScoredTrack{}, nil, fmt.Errorf("%w: queue is host-only", ErrNotAllowed)
	}

	if track == nil {
		resolved, err := s.tracks.ResolveTrack(ctx, session.Platform, trackID)
		if err != nil {
			return models.ScoredTrack{}, nil, err
		}
		track = &resolved
	}
	if track.ID == "" {
		return models.ScoredTrack{}, nil, fmt.Errorf("%w: track id missing", ErrInvalidPayload)
	}

	queued := models.QueuedTrack{
		Track:   *track,
		AddedBy: models.AddedBy{SessionID: actor.SessionID, Username: actor.Username},
		AddedAt: time.Now(),
	}

	l := s.lock(groupID)
	l.Lock()
	// the resolver call is a suspension point, so re-check the session
	exists, err := s.store.Exists(ctx, groupID)
	if err != nil {
		l.Unlock()
		return models.ScoredTrack{}, nil, err
	}
	if !exists {
		l.Unlock()
		return models.ScoredTrack{}, nil, ErrNoActiveSession
	}
	if err := s.index.Add(ctx, groupID, queued, score); err != nil {
		l.Unlock()
		return models.ScoredTrack{}, nil, err
	}
	l.Unlock()

	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return models.ScoredTrack{}, nil, err
	}

	entry := models.ScoredTrack{QueuedTrack: queued, Score: score}
	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventNewTrack, Track: &entry})
	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: tracks})
	observability.IncTracksAdded()
	return entry, tracks, nil
}

// Vote applies an upvote or downvote. The ledger holds one entry per
// (voter, track): a same-direction repeat is idempotent, an opposite vote
// flips the stored entry and applies twice the weight to the rank.
func (s *Service) Vote(ctx context.Context, groupID, voterID string, queued models.QueuedTrack, weight int) ([]models.ScoredTrack, error) {
	if weight != 1 && weight != -1 {
		return nil, fmt.Errorf("%w: vote weight must be +1 or -1", ErrInvalidPayload)
	}
	if queued.Track.ID == "" {
		return nil, fmt.Errorf("%w: missing track data", ErrInvalidPayload)
	}

	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	if !session.Settings.VoteSystemEnabled {
		l.Unlock()
		return nil, fmt.Errorf("%w: vote system disabled", ErrInvalidPayload)
	}
	if session.Settings.VotingMode == models.VotingUpvoteOnly && weight < 0 {
		l.Unlock()
		return nil, fmt.Errorf("%w: downvotes disabled", ErrInvalidPayload)
	}

	now := time.Now()
	delta := 0
	switch existing := session.VoteBy(voterID, queued.Track.ID); {
	case existing == nil:
		session.Votes = append(session.Votes, models.Vote{
			TrackID:   queued.Track.ID,
			VoterID:   voterID,
			Weight:    weight,
			Timestamp: now,
		})
		if member := session.FindMember(voterID); member != nil {
			member.VoteCount++
		}
		delta = weight
	case existing.Weight == weight:
		// repeat vote in the same direction never double-counts, but the
		// voter still gets the current queue back
		l.Unlock()
		tracks, err := s.index.List(ctx, groupID)
		if err != nil {
			return nil, err
		}
		s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: tracks})
		return tracks, nil
	default:
		existing.Weight = weight
		existing.Timestamp = now
		delta = 2 * weight
	}
	session.Metadata.LastUpdated = now

	if err := s.index.IncrBy(ctx, groupID, queued.Identity(), delta); err != nil {
		l.Unlock()
		return nil, err
	}
	if err := s.replaceSession(ctx, session); err != nil {
		l.Unlock()
		return nil, err
	}
	l.Unlock()

	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return nil, err
	}

	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: tracks})
	observability.IncVote(weight)
	return tracks, nil
}

// Reorder pins a track at an explicit score. Admin surface, gated by the
// session's reordering rule.
func (s *Service) Reorder(ctx context.Context, groupID string, actor identity.Participant, queued models.QueuedTrack, score int) ([]models.ScoredTrack, error) {
	if queued.Track.ID == "" {
		return nil, fmt.Errorf("%w: missing track data", ErrInvalidPayload)
	}

	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	if !session.Settings.QueueReorderingEnabled {
		l.Unlock()
		return nil, fmt.Errorf("%w: queue reordering disabled", ErrNotAllowed)
	}
	if actor.Role != models.RoleAdmin {
		l.Unlock()
		return nil, fmt.Errorf("%w: admin role required", ErrNotAllowed)
	}
	if err := s.index.Add(ctx, groupID, queued, score); err != nil {
		l.Unlock()
		return nil, err
	}
	l.Unlock()

	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: tracks})
	return tracks, nil
}

// RemoveTrack deletes a track from the queue. Votes already in the ledger
// stay historical.
func (s *Service) RemoveTrack(ctx context.Context, groupID string, queued models.QueuedTrack) ([]models.ScoredTrack, error) {
	if queued.Track.ID == "" {
		return nil, fmt.Errorf("%w: missing track data", ErrInvalidPayload)
	}

	l := s.lock(groupID)
	l.Lock()
	exists, err := s.store.Exists(ctx, groupID)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	if !exists {
		l.Unlock()
		return nil, ErrNoActiveSession
	}
	if err := s.index.Remove(ctx, groupID, queued.Identity()); err != nil {
		l.Unlock()
		return nil, err
	}
	l.Unlock()

	tracks, err := s.index.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: tracks})
	return tracks, nil
}

// UpdateSettings replaces the session rules. Admin only.
func (s *Service) UpdateSettings(ctx context.Context, groupID string, actor identity.Participant, settings models.SessionSettings) (models.GroupSession, error) {
	if actor.Role != models.RoleAdmin {
		return models.GroupSession{}, fmt.Errorf("%w: admin role required", ErrNotAllowed)
	}

	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return models.GroupSession{}, err
	}
	session.Settings = settings
	session.Metadata.LastUpdated = time.Now()
	if err := s.replaceSession(ctx, session); err != nil {
		l.Unlock()
		return models.GroupSession{}, err
	}
	l.Unlock()

	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventSettings, Settings: &session.Settings})
	log.Printf("settings updated group=%s by=%s", groupID, actor.SessionID)
	return session, nil
}
