// ABOUTME: SQLite implementation of the turn ledger using modernc.org/sqlite
// ABOUTME: Creates the schema on open and stores timestamps as RFC3339 text

package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the ledger database at path.
// Parent directories are created if needed. The path ":memory:" keeps the
// ledger in memory for the life of the store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS turns (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			event_id   TEXT NOT NULL DEFAULT '',
			transport  TEXT NOT NULL DEFAULT '',
			user_id    TEXT NOT NULL,
			channel_id TEXT NOT NULL DEFAULT '',
			direction  TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			intent     TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL,
			error      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,

			CHECK (direction IN ('inbound', 'outbound'))
		);

		CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id, seq);
		CREATE INDEX IF NOT EXISTS idx_turns_event ON turns(transport, event_id);
		CREATE INDEX IF NOT EXISTS idx_turns_outcome ON turns(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveTurn appends a turn. ID and CreatedAt are filled in when empty.
func (s *SQLiteStore) SaveTurn(ctx context.Context, turn *Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO turns (
			id, event_id, transport, user_id, channel_id, direction, text, intent, outcome, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		turn.ID,
		turn.EventID,
		turn.Transport,
		turn.UserID,
		turn.ChannelID,
		string(turn.Direction),
		turn.Text,
		turn.Intent,
		string(turn.Outcome),
		turn.Error,
		turn.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	s.logger.Debug("saved turn",
		"turn_id", turn.ID,
		"user_id", turn.UserID,
		"direction", turn.Direction,
		"outcome", turn.Outcome,
	)
	return nil
}

const turnColumns = `seq, id, event_id, transport, user_id, channel_id, direction, text, intent, outcome, error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTurn(row rowScanner) (Turn, int64, error) {
	var t Turn
	var seq int64
	var direction, outcome, createdAt string
	if err := row.Scan(
		&seq,
		&t.ID,
		&t.EventID,
		&t.Transport,
		&t.UserID,
		&t.ChannelID,
		&direction,
		&t.Text,
		&t.Intent,
		&outcome,
		&t.Error,
		&createdAt,
	); err != nil {
		return Turn{}, 0, err
	}
	t.Direction = Direction(direction)
	t.Outcome = Outcome(outcome)
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Turn{}, 0, fmt.Errorf("parsing timestamp: %w", err)
	}
	t.CreatedAt = ts
	return t, seq, nil
}

// GetTurn retrieves a turn by ID
func (s *SQLiteStore) GetTurn(ctx context.Context, id string) (*Turn, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns WHERE id = ?`, id)
	t, _, err := scanTurn(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying turn: %w", err)
	}
	return &t, nil
}

// encodeCursor turns a row sequence number into an opaque cursor.
func encodeCursor(seq int64) string {
	return base64.StdEncoding.EncodeToString([]byte("turn|" + strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: bad encoding: %v", ErrInvalidCursor, err)
	}
	raw, ok := strings.CutPrefix(string(decoded), "turn|")
	if !ok {
		return 0, fmt.Errorf("%w: missing prefix", ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad sequence: %v", ErrInvalidCursor, err)
	}
	return seq, nil
}

// ListTurns returns a page of turns in insertion order.
func (s *SQLiteStore) ListTurns(ctx context.Context, p ListTurnsParams) (*ListTurnsResult, error) {
	limit := clampLimit(p.Limit)

	var args []any
	query := `SELECT ` + turnColumns + ` FROM turns WHERE 1=1`

	if p.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, p.UserID)
	}
	if p.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, p.Since.UTC().Format(time.RFC3339))
	}
	if p.Cursor != "" {
		after, err := decodeCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND seq > ?`
		args = append(args, after)
	}

	// Fetch one extra row to detect a further page
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	var seqs []int64
	for rows.Next() {
		t, seq, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}
		turns = append(turns, t)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turn rows: %w", err)
	}

	result := &ListTurnsResult{Turns: turns}
	if len(turns) > limit {
		result.Turns = turns[:limit]
		result.HasMore = true
		result.NextCursor = encodeCursor(seqs[limit-1])
	}
	return result, nil
}

// CountByOutcome tallies turns per outcome.
func (s *SQLiteStore) CountByOutcome(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM turns GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting turns: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating count rows: %w", err)
	}
	return counts, nil
}
