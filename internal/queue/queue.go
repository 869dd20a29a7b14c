package queue

import (
	"context"

	"jam-service/internal/models"
)

// Index is the vote-ranked track collection, one ranking per group. It is the
// secondary index derived from per-vote deltas; the session aggregate's vote
// ledger stays the source of truth for reconciliation.
type Index interface {
	// Add inserts a track with the given score. Re-adding the same track
	// identity overwrites the entry and counts as a fresh insertion for
	// tie-ordering purposes.
	Add(ctx context.Context, groupID string, track models.QueuedTrack, score int) error
	// IncrBy atomically applies a score delta to the identified track. A
	// delta against a track no longer in the queue is a no-op; the vote may
	// race a remove.
	IncrBy(ctx context.Context, groupID, identity string, delta int) error
	// Remove deletes the track and its score entry.
	Remove(ctx context.Context, groupID, identity string) error
	// List returns all tracks ordered by descending score, insertion order
	// breaking ties.
	List(ctx context.Context, groupID string) ([]models.ScoredTrack, error)
	// Destroy wipes the ranking for a group when its session ends.
	Destroy(ctx context.Context, groupID string) error
}
