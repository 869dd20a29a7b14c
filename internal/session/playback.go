package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"jam-service/internal/identity"
	"jam-service/internal/models"
	"jam-service/internal/observability"
)

// Transport actions accepted from clients.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionSeek     = "seek"
	ActionNext     = "next"
	ActionPrevious = "previous"
)

// driftThresholdMs is how far a client's reported position may lag or lead
// the authoritative pointer before it gets a seek correction.
const driftThresholdMs = 500

// TransportCommand is an explicit playback transport event from a client.
type TransportCommand struct {
	Action      string
	TrackID     string
	PositionMs  int64
	DeviceID    string
	AccessToken string
}

// Transport applies an explicit play/pause/resume/seek/next/previous event to
// the authoritative now-playing pointer and broadcasts the result.
func (s *Service) Transport(ctx context.Context, groupID string, actor identity.Participant, cmd TransportCommand) error {
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		return err
	}

	// resolve metadata outside the group lock; provider calls block
	var track *models.Track
	if cmd.Action == ActionPlay {
		resolved, err := s.trackForPlay(ctx, session, cmd.TrackID)
		if err != nil {
			return err
		}
		track = &resolved
	}

	l := s.lock(groupID)
	l.Lock()
	// re-validate after the suspension point; a concurrent stop may have won
	session, err = s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return err
	}

	now := time.Now()
	var queueAfter []models.ScoredTrack
	switch cmd.Action {
	case ActionPlay:
		session.NowPlaying = &models.NowPlaying{
			Track:           *track,
			State:           models.StatePlaying,
			ProgressMs:      cmd.PositionMs,
			InitiatedBy:     actor.SessionID,
			ClientUpdatedAt: now,
			ServerSyncedAt:  now,
		}
	case ActionPause:
		if session.NowPlaying == nil {
			l.Unlock()
			return nil
		}
		session.NowPlaying.State = models.StatePaused
		if cmd.PositionMs > 0 {
			session.NowPlaying.ProgressMs = cmd.PositionMs
		}
		session.NowPlaying.InitiatedBy = actor.SessionID
		session.NowPlaying.ClientUpdatedAt = now
		session.NowPlaying.ServerSyncedAt = now
	case ActionResume:
		if session.NowPlaying == nil {
			l.Unlock()
			return nil
		}
		session.NowPlaying.State = models.StatePlaying
		session.NowPlaying.InitiatedBy = actor.SessionID
		session.NowPlaying.ClientUpdatedAt = now
		session.NowPlaying.ServerSyncedAt = now
	case ActionSeek:
		if session.NowPlaying == nil {
			l.Unlock()
			return nil
		}
		session.NowPlaying.ProgressMs = cmd.PositionMs
		session.NowPlaying.InitiatedBy = actor.SessionID
		session.NowPlaying.ClientUpdatedAt = now
		session.NowPlaying.ServerSyncedAt = now
	case ActionNext:
		queueAfter, err = s.advanceLocked(ctx, &session, actor.SessionID)
		if err != nil {
			l.Unlock()
			return err
		}
	case ActionPrevious:
		if session.NowPlaying == nil {
			l.Unlock()
			return nil
		}
		// no queue history is kept; previous restarts the current track
		session.NowPlaying.ProgressMs = 0
		session.NowPlaying.State = models.StatePlaying
		session.NowPlaying.InitiatedBy = actor.SessionID
		session.NowPlaying.ClientUpdatedAt = now
		session.NowPlaying.ServerSyncedAt = now
	default:
		l.Unlock()
		return fmt.Errorf("%w: unknown transport action %q", ErrInvalidPayload, cmd.Action)
	}

	if err := s.replaceSession(ctx, session); err != nil {
		l.Unlock()
		return err
	}
	nowPlaying := session.NowPlaying
	l.Unlock()

	if queueAfter != nil {
		s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: queueAfter})
	}
	s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventPlayback, NowPlaying: nowPlaying})

	s.issuePlayback(ctx, session.Platform, cmd, nowPlaying)
	return nil
}

// trackForPlay finds metadata for the requested track: the current pointer
// first, then the queue, then the provider.
func (s *Service) trackForPlay(ctx context.Context, session models.GroupSession, trackID string) (models.Track, error) {
	if trackID == "" {
		return models.Track{}, fmt.Errorf("%w: missing track id", ErrInvalidPayload)
	}
	if np := session.NowPlaying; np != nil && np.Track.ID == trackID {
		return np.Track, nil
	}
	tracks, err := s.index.List(ctx, session.GroupID)
	if err != nil {
		return models.Track{}, err
	}
	for _, entry := range tracks {
		if entry.Track.ID == trackID {
			return entry.Track, nil
		}
	}
	return s.tracks.ResolveTrack(ctx, session.Platform, trackID)
}

// issuePlayback forwards a transport event to the provider when the client
// supplied a credential. Best effort: failures are logged, never broadcast.
func (s *Service) issuePlayback(ctx context.Context, platform string, cmd TransportCommand, nowPlaying *models.NowPlaying) {
	if s.commander == nil || cmd.AccessToken == "" || nowPlaying == nil {
		return
	}
	switch cmd.Action {
	case ActionPlay, ActionResume, ActionNext:
		if err := s.commander.Play(ctx, platform, cmd.AccessToken, cmd.DeviceID, nowPlaying.Track.ID, nowPlaying.ProgressMs); err != nil {
			log.Printf("playback command platform=%s track=%s: %v", platform, nowPlaying.Track.ID, err)
		}
	}
}

// ReportPlayerState reconciles one client's local player against the
// authoritative pointer. The returned command, when non-nil, goes only to the
// reporting connection.
func (s *Service) ReportPlayerState(ctx context.Context, groupID, reporterID, trackID string, positionMs int64, state string) (*models.SyncCommand, error) {
	l := s.lock(groupID)
	l.Lock()
	session, err := s.getSession(ctx, groupID)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	np := session.NowPlaying
	if np == nil {
		l.Unlock()
		return nil, nil
	}

	// a playing→paused transition at position zero on the current track is a
	// natural end-of-track
	if np.State == models.StatePlaying && state == models.StatePaused && positionMs == 0 && trackID == np.Track.ID {
		queueAfter, err := s.advanceLocked(ctx, &session, reporterID)
		if err != nil {
			l.Unlock()
			return nil, err
		}
		if err := s.replaceSession(ctx, session); err != nil {
			l.Unlock()
			return nil, err
		}
		nowPlaying := session.NowPlaying
		l.Unlock()

		s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventQueue, Queue: queueAfter})
		s.events.Broadcast(groupID, models.SessionEvent{Type: models.EventPlayback, NowPlaying: nowPlaying})
		observability.IncQueueAdvance()
		return nil, nil
	}

	// the initiating participant's player is treated as authoritative; its
	// reports refresh the shared pointer instead of being corrected
	if reporterID == np.InitiatedBy && trackID == np.Track.ID {
		now := time.Now()
		np.ProgressMs = positionMs
		if state == models.StatePlaying || state == models.StatePaused {
			np.State = state
		}
		np.ClientUpdatedAt = now
		np.ServerSyncedAt = now
		if err := s.replaceSession(ctx, session); err != nil {
			l.Unlock()
			return nil, err
		}
		l.Unlock()
		return nil, nil
	}
	l.Unlock()

	if trackID != np.Track.ID {
		track := np.Track
		return &models.SyncCommand{
			Action:     "load",
			Track:      &track,
			PositionMs: np.ProgressMs,
			State:      np.State,
		}, nil
	}

	drift := positionMs - np.ProgressMs
	if drift < 0 {
		drift = -drift
	}
	if drift > driftThresholdMs {
		cmd := &models.SyncCommand{Action: "seek", PositionMs: np.ProgressMs}
		if state != np.State {
			cmd.State = np.State
		}
		return cmd, nil
	}
	if state != np.State {
		action := "pause"
		if np.State == models.StatePlaying {
			action = "play"
		}
		return &models.SyncCommand{Action: action, PositionMs: np.ProgressMs, State: np.State}, nil
	}
	return nil, nil
}

// advanceLocked rotates the consumed front-of-queue track to the tail at the
// neutral baseline score and promotes the new front into nowPlaying. With
// repeat enabled the front track replays from zero instead. Caller holds the
// group lock.
func (s *Service) advanceLocked(ctx context.Context, session *models.GroupSession, initiatedBy string) ([]models.ScoredTrack, error) {
	tracks, err := s.index.List(ctx, session.GroupID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		session.NowPlaying = nil
		return tracks, nil
	}

	front := tracks[0]
	if !session.Settings.RepeatEnabled {
		if err := s.index.Remove(ctx, session.GroupID, front.Identity()); err != nil {
			return nil, err
		}
		if err := s.index.Add(ctx, session.GroupID, front.QueuedTrack, 0); err != nil {
			return nil, err
		}
		tracks, err = s.index.List(ctx, session.GroupID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	session.NowPlaying = &models.NowPlaying{
		Track:           tracks[0].Track,
		State:           models.StatePlaying,
		ProgressMs:      0,
		InitiatedBy:     initiatedBy,
		ClientUpdatedAt: now,
		ServerSyncedAt:  now,
	}
	return tracks, nil
}
