package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"jam-service/internal/models"
)

// RedisIndex keeps each group's ranking in a sorted set, with the track
// payloads in a companion hash keyed by track identity.
type RedisIndex struct {
	rdb *redis.Client
}

// NewRedisIndex constructs a RedisIndex on an existing client.
func NewRedisIndex(rdb *redis.Client) *RedisIndex {
	return &RedisIndex{rdb: rdb}
}

func rankKey(groupID string) string {
	return "queue:" + groupID
}

func tracksKey(groupID string) string {
	return "queue:" + groupID + ":tracks"
}

// Add inserts or overwrites a queue entry at the given score.
func (r *RedisIndex) Add(ctx context.Context, groupID string, track models.QueuedTrack, score int) error {
	body, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("marshal queued track: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, rankKey(groupID), redis.Z{Score: float64(score), Member: track.Identity()})
	pipe.HSet(ctx, tracksKey(groupID), track.Identity(), body)
	_, err = pipe.Exec(ctx)
	return err
}

// IncrBy applies a score delta as a single atomic increment. The XX flag
// makes a delta against a removed track a server-side no-op.
func (r *RedisIndex) IncrBy(ctx context.Context, groupID, identity string, delta int) error {
	_, err := r.rdb.ZAddArgsIncr(ctx, rankKey(groupID), redis.ZAddArgs{
		XX:      true,
		Members: []redis.Z{{Score: float64(delta), Member: identity}},
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Remove deletes the identified entry.
func (r *RedisIndex) Remove(ctx context.Context, groupID, identity string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, rankKey(groupID), identity)
	pipe.HDel(ctx, tracksKey(groupID), identity)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the ranked queue, score descending. Sorted sets break score
// ties lexicographically, so ordering is finished locally against the
// insertion timestamps carried on the payloads.
func (r *RedisIndex) List(ctx context.Context, groupID string) ([]models.ScoredTrack, error) {
	scores, err := r.rdb.ZRangeWithScores(ctx, rankKey(groupID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return []models.ScoredTrack{}, nil
	}
	payloads, err := r.rdb.HGetAll(ctx, tracksKey(groupID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]models.ScoredTrack, 0, len(scores))
	for _, z := range scores {
		identity, _ := z.Member.(string)
		body, ok := payloads[identity]
		if !ok {
			continue
		}
		var track models.QueuedTrack
		if err := json.Unmarshal([]byte(body), &track); err != nil {
			return nil, fmt.Errorf("decode queued track %s: %w", identity, err)
		}
		out = append(out, models.ScoredTrack{QueuedTrack: track, Score: int(z.Score)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AddedAt.Before(out[j].AddedAt)
	})
	return out, nil
}

// Destroy wipes the group's ranking.
func (r *RedisIndex) Destroy(ctx context.Context, groupID string) error {
	return r.rdb.Del(ctx, rankKey(groupID), tracksKey(groupID)).Err()
}
