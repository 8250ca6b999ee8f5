// ABOUTME: Tests for SQLite store initialization
// ABOUTME: Covers file creation, nested directories, in-memory mode, and reopening

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	turn := &Turn{UserID: "u1", Direction: DirectionInbound, Outcome: OutcomeHandled}
	if err := store.SaveTurn(ctx, turn); err != nil {
		t.Fatalf("SaveTurn failed: %v", err)
	}
	if _, err := store.GetTurn(ctx, turn.ID); err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	turn := &Turn{UserID: "u1", Direction: DirectionInbound, Outcome: OutcomeHandled}
	if err := first.SaveTurn(ctx, turn); err != nil {
		t.Fatalf("SaveTurn failed: %v", err)
	}
	first.Close()

	// Schema creation must tolerate an existing database
	second, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer second.Close()

	got, err := second.GetTurn(ctx, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn after reopen failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "u1")
	}
}
