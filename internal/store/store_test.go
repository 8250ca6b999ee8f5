// ABOUTME: Behavioural tests for the turn ledger run against both Store implementations
// ABOUTME: Covers save/get, pagination cursors, filters, and outcome counts

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// forEachStore runs fn against a fresh SQLiteStore and MemoryStore.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, setupTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestStore_SaveAndGetTurn(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		turn := &Turn{
			EventID:   "$evt1",
			Transport: "matrix",
			UserID:    "@alice:example.org",
			ChannelID: "!room:example.org",
			Direction: DirectionInbound,
			Text:      "Hello there",
			Intent:    "Hello",
			Outcome:   OutcomeHandled,
			CreatedAt: created,
		}
		require.NoError(t, s.SaveTurn(ctx, turn))
		require.NotEmpty(t, turn.ID, "ID is assigned on save")

		got, err := s.GetTurn(ctx, turn.ID)
		require.NoError(t, err)
		assert.Equal(t, *turn, *got)
	})
}

func TestStore_SaveTurn_DefaultsTimestamp(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		before := time.Now().UTC().Add(-time.Second)

		turn := &Turn{UserID: "u1", Direction: DirectionOutbound, Outcome: OutcomeSent}
		require.NoError(t, s.SaveTurn(ctx, turn))
		assert.True(t, turn.CreatedAt.After(before))
	})
}

func TestStore_GetTurn_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetTurn(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListTurns_Pagination(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			require.NoError(t, s.SaveTurn(ctx, &Turn{
				UserID:    "u1",
				Direction: DirectionInbound,
				Text:      fmt.Sprintf("msg %d", i),
				Outcome:   OutcomeHandled,
			}))
		}

		page1, err := s.ListTurns(ctx, ListTurnsParams{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page1.Turns, 2)
		assert.True(t, page1.HasMore)
		assert.Equal(t, "msg 0", page1.Turns[0].Text)
		assert.Equal(t, "msg 1", page1.Turns[1].Text)

		page2, err := s.ListTurns(ctx, ListTurnsParams{Limit: 2, Cursor: page1.NextCursor})
		require.NoError(t, err)
		require.Len(t, page2.Turns, 2)
		assert.True(t, page2.HasMore)
		assert.Equal(t, "msg 2", page2.Turns[0].Text)

		page3, err := s.ListTurns(ctx, ListTurnsParams{Limit: 2, Cursor: page2.NextCursor})
		require.NoError(t, err)
		require.Len(t, page3.Turns, 1)
		assert.False(t, page3.HasMore)
		assert.Empty(t, page3.NextCursor)
		assert.Equal(t, "msg 4", page3.Turns[0].Text)
	})
}

func TestStore_ListTurns_FilterByUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, user := range []string{"alice", "bob", "alice", "bob", "alice"} {
			require.NoError(t, s.SaveTurn(ctx, &Turn{UserID: user, Direction: DirectionInbound, Outcome: OutcomeHandled}))
		}

		res, err := s.ListTurns(ctx, ListTurnsParams{UserID: "alice"})
		require.NoError(t, err)
		require.Len(t, res.Turns, 3)
		for _, turn := range res.Turns {
			assert.Equal(t, "alice", turn.UserID)
		}
		assert.False(t, res.HasMore)
	})
}

func TestStore_ListTurns_Since(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			require.NoError(t, s.SaveTurn(ctx, &Turn{
				UserID:    "u1",
				Direction: DirectionInbound,
				Outcome:   OutcomeHandled,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}

		since := base.Add(2 * time.Hour)
		res, err := s.ListTurns(ctx, ListTurnsParams{Since: &since})
		require.NoError(t, err)
		require.Len(t, res.Turns, 2)
		assert.Equal(t, since, res.Turns[0].CreatedAt)
	})
}

func TestStore_ListTurns_InvalidCursor(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.ListTurns(context.Background(), ListTurnsParams{Cursor: "not base64!"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestStore_CountByOutcome(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		outcomes := []Outcome{OutcomeHandled, OutcomeHandled, OutcomeDuplicate, OutcomeFailed, OutcomeSent, OutcomeSent, OutcomeSent}
		for _, o := range outcomes {
			require.NoError(t, s.SaveTurn(ctx, &Turn{UserID: "u", Direction: DirectionInbound, Outcome: o}))
		}

		counts, err := s.CountByOutcome(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[Outcome]int{
			OutcomeHandled:   2,
			OutcomeDuplicate: 1,
			OutcomeFailed:    1,
			OutcomeSent:      3,
		}, counts)
	})
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, defaultListLimit},
		{-3, defaultListLimit},
		{10, 10},
		{maxListLimit, maxListLimit},
		{maxListLimit + 1, maxListLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.in), "clampLimit(%d)", tt.in)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	seq, err := decodeCursor(encodeCursor(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	_, err = decodeCursor("aGVsbG8=") // "hello", no prefix
	assert.Error(t, err)
}
