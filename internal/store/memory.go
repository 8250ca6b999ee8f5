// ABOUTME: In-memory Store implementation for tests and runs with persistence disabled
// ABOUTME: Mirrors SQLiteStore semantics including cursor pagination

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. Turns are lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []Turn
	byID  map[string]int // turn ID -> index in turns
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
	}
}

// SaveTurn appends a copy of turn.
func (m *MemoryStore) SaveTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[turn.ID] = len(m.turns)
	// Match the second precision of the SQLite store
	t := *turn
	t.CreatedAt = t.CreatedAt.UTC().Truncate(time.Second)
	m.turns = append(m.turns, t)
	return nil
}

// GetTurn retrieves a turn by ID.
func (m *MemoryStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := m.turns[idx]
	return &t, nil
}

// ListTurns returns a page of turns in insertion order. Cursors encode the
// 1-based position of the last returned turn, the same shape SQLiteStore uses.
func (m *MemoryStore) ListTurns(ctx context.Context, p ListTurnsParams) (*ListTurnsResult, error) {
	limit := clampLimit(p.Limit)

	var after int64
	if p.Cursor != "" {
		seq, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		after = seq
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := &ListTurnsResult{}
	for i := int(after); i < len(m.turns); i++ {
		t := m.turns[i]
		if p.UserID != "" && t.UserID != p.UserID {
			continue
		}
		if p.Since != nil && t.CreatedAt.Before(p.Since.UTC().Truncate(time.Second)) {
			continue
		}
		if len(result.Turns) == limit {
			result.HasMore = true
			break
		}
		result.Turns = append(result.Turns, t)
		after = int64(i + 1)
	}
	if result.HasMore {
		result.NextCursor = encodeCursor(after)
	}
	return result, nil
}

// CountByOutcome tallies turns per outcome.
func (m *MemoryStore) CountByOutcome(ctx context.Context) (map[Outcome]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[Outcome]int)
	for _, t := range m.turns {
		counts[t.Outcome]++
	}
	return counts, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
