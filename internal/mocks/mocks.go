package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"jam-service/internal/identity"
	"jam-service/internal/models"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) SetActive(ctx context.Context, groupID string, active bool) error {
	args := m.Called(ctx, groupID, active)
	return args.Error(0)
}

type ResolverMock struct {
	mock.Mock
}

func (m *ResolverMock) Resolve(ctx context.Context, token string) (identity.Participant, error) {
	args := m.Called(ctx, token)
	var participant identity.Participant
	if val := args.Get(0); val != nil {
		participant = val.(identity.Participant)
	}
	return participant, args.Error(1)
}

type TrackResolverMock struct {
	mock.Mock
}

func (m *TrackResolverMock) ResolveTrack(ctx context.Context, platform, trackID string) (models.Track, error) {
	args := m.Called(ctx, platform, trackID)
	var track models.Track
	if val := args.Get(0); val != nil {
		track = val.(models.Track)
	}
	return track, args.Error(1)
}

type PlaybackCommanderMock struct {
	mock.Mock
}

func (m *PlaybackCommanderMock) Play(ctx context.Context, platform, accessToken, deviceID, trackID string, positionMs int64) error {
	args := m.Called(ctx, platform, accessToken, deviceID, trackID, positionMs)
	return args.Error(0)
}
