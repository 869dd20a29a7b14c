package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"jam-service/internal/identity"
	"jam-service/internal/middleware"
	"jam-service/internal/mocks"
	"jam-service/internal/models"
	"jam-service/internal/queue"
	"jam-service/internal/repositories"
	"jam-service/internal/session"
	"jam-service/internal/store"
	"jam-service/internal/ws"
)

func newTestRouter(t *testing.T, participant identity.Participant) (*gin.Engine, *session.Service, *mocks.GroupRepositoryMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	groups := new(mocks.GroupRepositoryMock)
	svc := session.NewService(store.NewMemoryStore(), queue.NewMemoryIndex(), groups, nil, nil, ws.NewHub())

	resolver := new(mocks.ResolverMock)
	resolver.On("Resolve", mock.Anything, "token").Return(participant, nil)
	auth := middleware.AuthMiddleware(resolver)

	handler := NewSessionHandler(svc, nil)

	router := gin.New()
	router.POST("/groups/:group_id/session", auth, handler.Start)
	router.DELETE("/groups/:group_id/session", auth, handler.Stop)
	router.GET("/groups/:group_id/session", auth, handler.Get)
	router.GET("/groups/:group_id/queue", auth, handler.GetQueue)
	router.PATCH("/groups/:group_id/session/settings", auth, handler.UpdateSettings)
	return router, svc, groups
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func hostParticipant() identity.Participant {
	return identity.Participant{SessionID: "host", Username: "harriet", Role: models.RoleAdmin}
}

func TestStartSession(t *testing.T) {
	router, _, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", true).Return(nil)

	rec := doRequest(router, http.MethodPost, "/groups/g1/session", gin.H{"max_participants": 8})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.GroupSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "g1", created.GroupID)
	assert.Equal(t, "spotify", created.Platform)
	assert.Equal(t, 8, created.Settings.MaxParticipants)
}

func TestStartSessionConflict(t *testing.T) {
	router, _, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", true).Return(nil)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/groups/g1/session", nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/groups/g1/session", nil).Code)
}

func TestStartSessionUnknownGroup(t *testing.T) {
	router, _, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "nope").Return(nil, repositories.ErrGroupNotFound)

	rec := doRequest(router, http.MethodPost, "/groups/nope/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartSessionRequiresAuth(t *testing.T) {
	router, _, _ := newTestRouter(t, hostParticipant())

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStopSession(t *testing.T) {
	router, _, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", mock.Anything).Return(nil)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/groups/g1/session", nil).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/groups/g1/session", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/groups/g1/session", nil).Code)
}

func TestGetSessionAndQueue(t *testing.T) {
	router, svc, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", true).Return(nil)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/groups/g1/session", nil).Code)
	_, _, err := svc.AddTrack(context.Background(), "g1", hostParticipant(), &models.Track{ID: "t1", Name: "opener"}, "", 4)
	require.NoError(t, err)

	rec := doRequest(router, http.MethodGet, "/groups/g1/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payload struct {
		Session models.GroupSession  `json:"session"`
		Queue   []models.ScoredTrack `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "g1", payload.Session.GroupID)
	require.Len(t, payload.Queue, 1)
	assert.Equal(t, 4, payload.Queue[0].Score)

	rec = doRequest(router, http.MethodGet, "/groups/g1/queue", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSessionNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t, hostParticipant())
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/groups/g1/session", nil).Code)
}

func TestUpdateSettings(t *testing.T) {
	router, _, groups := newTestRouter(t, hostParticipant())
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", true).Return(nil)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/groups/g1/session", nil).Code)

	rec := doRequest(router, http.MethodPatch, "/groups/g1/session/settings", models.SessionSettings{
		VotingMode:        models.VotingUpvoteOnly,
		QueueMode:         models.QueueCollaborative,
		PlaybackMode:      models.PlaybackEqual,
		VoteSystemEnabled: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.GroupSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.VotingUpvoteOnly, updated.Settings.VotingMode)
}

func TestUpdateSettingsForbiddenForGuests(t *testing.T) {
	guest := identity.Participant{SessionID: "p1", Username: "gus", Role: models.RoleGuest}
	router, svc, groups := newTestRouter(t, guest)
	groups.On("GetGroup", mock.Anything, "g1").Return(models.Group{ID: "g1", Platform: "spotify"}, nil)
	groups.On("SetActive", mock.Anything, "g1", true).Return(nil)

	_, err := svc.Start(context.Background(), "g1", hostParticipant(), "", 0)
	require.NoError(t, err)

	rec := doRequest(router, http.MethodPatch, "/groups/g1/session/settings", models.SessionSettings{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
