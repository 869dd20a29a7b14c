package store

import (
	"context"
	"errors"

	"jam-service/internal/models"
)

var (
	// ErrSessionExists is returned when a session is started for a group that
	// already has one. Sessions are singletons per group.
	ErrSessionExists = errors.New("session already exists")
	// ErrSessionNotFound is returned for reads, replaces and destroys against
	// a group with no live session.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore owns the canonical GroupSession aggregate per group. Reads and
// writes are whole-aggregate; callers are responsible for read-modify-write
// sequencing.
type SessionStore interface {
	Create(ctx context.Context, session models.GroupSession) error
	Get(ctx context.Context, groupID string) (models.GroupSession, error)
	Replace(ctx context.Context, session models.GroupSession) error
	Exists(ctx context.Context, groupID string) (bool, error)
	Destroy(ctx context.Context, groupID string) error
}
