package queue

import (
	"context"
	"sort"
	"sync"

	"jam-service/internal/models"
)

type memoryEntry struct {
	track models.QueuedTrack
	score int
	seq   uint64
}

// MemoryIndex keeps rankings in process memory. Used when no Redis URL is
// configured, and by tests.
type MemoryIndex struct {
	mu     sync.Mutex
	groups map[string]map[string]*memoryEntry
	seq    uint64
}

// NewMemoryIndex constructs an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{groups: make(map[string]map[string]*memoryEntry)}
}

// Add inserts or overwrites a queue entry at the given score.
func (m *MemoryIndex) Add(ctx context.Context, groupID string, track models.QueuedTrack, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.groups[groupID]
	if !ok {
		entries = make(map[string]*memoryEntry)
		m.groups[groupID] = entries
	}
	m.seq++
	entries[track.Identity()] = &memoryEntry{track: track, score: score, seq: m.seq}
	return nil
}

// IncrBy applies a score delta under the index lock, so racing voters on the
// same track never lose an update.
func (m *MemoryIndex) IncrBy(ctx context.Context, groupID, identity string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.groups[groupID][identity]; ok {
		entry.score += delta
	}
	return nil
}

// Remove deletes the identified entry.
func (m *MemoryIndex) Remove(ctx context.Context, groupID, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entries, ok := m.groups[groupID]; ok {
		delete(entries, identity)
	}
	return nil
}

// List returns the ranked queue, score descending with insertion order
// breaking ties. Entries are copied out under the lock; a racing IncrBy must
// never mutate what the sort is reading.
func (m *MemoryIndex) List(ctx context.Context, groupID string) ([]models.ScoredTrack, error) {
	m.mu.Lock()
	entries := make([]memoryEntry, 0, len(m.groups[groupID]))
	for _, entry := range m.groups[groupID] {
		entries = append(entries, *entry)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]models.ScoredTrack, 0, len(entries))
	for _, entry := range entries {
		out = append(out, models.ScoredTrack{QueuedTrack: entry.track, Score: entry.score})
	}
	return out, nil
}

// Destroy wipes the group's ranking.
func (m *MemoryIndex) Destroy(ctx context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, groupID)
	return nil
}
