package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jam-service/internal/models"
)

func playbackFixture(t *testing.T) (*Service, *recordingBroadcaster) {
	t.Helper()
	svc, groups, broadcaster := newTestService(t)
	startSession(t, svc, groups, 0)

	ctx := context.Background()
	_, _, err := svc.AddTrack(ctx, "g1", guest("p1"), &models.Track{ID: "a", Name: "track a"}, "", 5)
	require.NoError(t, err)
	_, _, err = svc.AddTrack(ctx, "g1", guest("p2"), &models.Track{ID: "b", Name: "track b"}, "", 3)
	require.NoError(t, err)
	return svc, broadcaster
}

func TestTransportPlaySetsPointer(t *testing.T) {
	ctx := context.Background()
	svc, broadcaster := playbackFixture(t)

	err := svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a"})
	require.NoError(t, err)

	session, _, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, session.NowPlaying)
	assert.Equal(t, "a", session.NowPlaying.Track.ID)
	assert.Equal(t, models.StatePlaying, session.NowPlaying.State)
	assert.Equal(t, "p1", session.NowPlaying.InitiatedBy)
	assert.NotEmpty(t, broadcaster.byType(models.EventPlayback))
}

func TestTransportPauseAndSeek(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a"}))

	require.NoError(t, svc.Transport(ctx, "g1", guest("p2"), TransportCommand{Action: ActionPause, PositionMs: 4321}))
	session, _, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePaused, session.NowPlaying.State)
	assert.Equal(t, int64(4321), session.NowPlaying.ProgressMs)

	require.NoError(t, svc.Transport(ctx, "g1", guest("p2"), TransportCommand{Action: ActionSeek, PositionMs: 90000}))
	session, _, err = svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), session.NowPlaying.ProgressMs)
}

func TestTransportRejectsUnknownAction(t *testing.T) {
	svc, _ := playbackFixture(t)
	err := svc.Transport(context.Background(), "g1", guest("p1"), TransportCommand{Action: "rewind"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNaturalEndRotatesQueue(t *testing.T) {
	ctx := context.Background()
	svc, broadcaster := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a"}))

	// playing -> paused at position zero on the current track is a track end
	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "a", 0, models.StatePaused)
	require.NoError(t, err)
	assert.Nil(t, cmd)

	session, tracks, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "b", tracks[0].Track.ID)
	assert.Equal(t, 3, tracks[0].Score)
	assert.Equal(t, "a", tracks[1].Track.ID)
	assert.Equal(t, 0, tracks[1].Score) // consumed track re-enters at the baseline

	require.NotNil(t, session.NowPlaying)
	assert.Equal(t, "b", session.NowPlaying.Track.ID)
	assert.Equal(t, models.StatePlaying, session.NowPlaying.State)
	assert.Equal(t, int64(0), session.NowPlaying.ProgressMs)
	assert.NotEmpty(t, broadcaster.byType(models.EventQueue))
}

func TestRepeatModeReplaysFront(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)

	_, err := svc.UpdateSettings(ctx, "g1", admin(), models.SessionSettings{
		VotingMode:        models.VotingUpvoteDownvote,
		QueueMode:         models.QueueCollaborative,
		PlaybackMode:      models.PlaybackEqual,
		VoteSystemEnabled: true,
		RepeatEnabled:     true,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a"}))

	_, err = svc.ReportPlayerState(ctx, "g1", "p2", "a", 0, models.StatePaused)
	require.NoError(t, err)

	session, tracks, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "a", tracks[0].Track.ID)
	assert.Equal(t, 5, tracks[0].Score)
	assert.Equal(t, "a", session.NowPlaying.Track.ID)
	assert.Equal(t, int64(0), session.NowPlaying.ProgressMs)
}

func TestNextOnEmptyQueueClearsPointer(t *testing.T) {
	ctx := context.Background()
	svc, groups, _ := newTestService(t)
	startSession(t, svc, groups, 0)

	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionNext}))

	session, _, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, session.NowPlaying)
}

func TestReportWrongTrackGetsLoadCommand(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a", PositionMs: 1000}))

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "b", 500, models.StatePlaying)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "load", cmd.Action)
	require.NotNil(t, cmd.Track)
	assert.Equal(t, "a", cmd.Track.ID)
	assert.Equal(t, int64(1000), cmd.PositionMs)

	// a mismatched track never advances the queue
	_, tracks, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "a", tracks[0].Track.ID)
}

func TestReportDriftGetsSeekCommand(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a", PositionMs: 1000}))

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "a", 5000, models.StatePlaying)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "seek", cmd.Action)
	assert.Equal(t, int64(1000), cmd.PositionMs)
}

func TestReportWithinThresholdIsInSync(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a", PositionMs: 1000}))

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "a", 1200, models.StatePlaying)
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestReportStateMismatchGetsPlayCommand(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a", PositionMs: 1000}))

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "a", 1100, models.StatePaused)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "play", cmd.Action)
	assert.Equal(t, models.StatePlaying, cmd.State)
}

func TestInitiatorReportRefreshesPointer(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)
	require.NoError(t, svc.Transport(ctx, "g1", guest("p1"), TransportCommand{Action: ActionPlay, TrackID: "a"}))

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p1", "a", 42000, models.StatePlaying)
	require.NoError(t, err)
	assert.Nil(t, cmd)

	session, _, err := svc.Snapshot(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(42000), session.NowPlaying.ProgressMs)

	// a follower comparing against the refreshed pointer is now in sync
	cmd, err = svc.ReportPlayerState(ctx, "g1", "p2", "a", 42100, models.StatePlaying)
	require.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestReportWithoutPointerIsNoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := playbackFixture(t)

	cmd, err := svc.ReportPlayerState(ctx, "g1", "p2", "a", 0, models.StatePlaying)
	require.NoError(t, err)
	assert.Nil(t, cmd)
}
