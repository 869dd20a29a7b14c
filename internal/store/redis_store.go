package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jam-service/internal/models"
)

// RedisStore persists session aggregates as JSON values, one key per group.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore constructs a RedisStore on an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(groupID string) string {
	return "session:" + groupID
}

// Create stores a new aggregate with SETNX so concurrent starts cannot both
// win.
func (s *RedisStore) Create(ctx context.Context, session models.GroupSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, sessionKey(session.GroupID), body, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

// Get loads and decodes the aggregate for the group.
func (s *RedisStore) Get(ctx context.Context, groupID string) (models.GroupSession, error) {
	body, err := s.rdb.Get(ctx, sessionKey(groupID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.GroupSession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.GroupSession{}, err
	}
	var session models.GroupSession
	if err := json.Unmarshal(body, &session); err != nil {
		return models.GroupSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Replace overwrites the aggregate with SETXX, so a replace racing a teardown
// cannot recreate the destroyed session.
func (s *RedisStore) Replace(ctx context.Context, session models.GroupSession) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.rdb.SetXX(ctx, sessionKey(session.GroupID), body, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Exists reports whether the group has a live session.
func (s *RedisStore) Exists(ctx context.Context, groupID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, sessionKey(groupID)).Result()
	return n > 0, err
}

// Destroy removes the aggregate entirely.
func (s *RedisStore) Destroy(ctx context.Context, groupID string) error {
	n, err := s.rdb.Del(ctx, sessionKey(groupID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
