// ABOUTME: Store interface and data types for the conversation turn ledger
// ABOUTME: Defines Turn records, outcomes, and paginated listing parameters

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested turn does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidCursor is returned by ListTurns for a cursor it did not issue
var ErrInvalidCursor = errors.New("invalid cursor")

// Direction says whether a turn came from a user or was sent to one
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Outcome records what happened to a turn
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"   // dispatched to an intent handler without error
	OutcomeDuplicate Outcome = "duplicate" // event id already seen; reported to callers, never stored
	OutcomeIgnored   Outcome = "ignored"   // filtered before dedupe (e.g. not a direct message)
	OutcomeFailed    Outcome = "failed"    // classification, dispatch, or send failed
	OutcomeSent      Outcome = "sent"      // outbound reply delivered
)

// Turn is one ledger entry: an inbound user message with its processing
// outcome, or an outbound reply.
type Turn struct {
	ID        string
	EventID   string // transport event id for inbound turns
	Transport string // "matrix", "discord", "telegram", "console"
	UserID    string
	ChannelID string
	Direction Direction
	Text      string
	Intent    string // resolved intent label, empty if none
	Outcome   Outcome
	Error     string
	CreatedAt time.Time
}

// ListTurnsParams selects a page of turns.
type ListTurnsParams struct {
	UserID string     // optional: only this user's turns
	Since  *time.Time // optional: only turns at or after this time
	Limit  int        // 1-500, defaults to 50
	Cursor string     // opaque cursor from a previous result
}

// ListTurnsResult is one page of turns, oldest first.
type ListTurnsResult struct {
	Turns      []Turn
	NextCursor string
	HasMore    bool
}

// Store persists the turn ledger.
type Store interface {
	SaveTurn(ctx context.Context, turn *Turn) error
	GetTurn(ctx context.Context, id string) (*Turn, error)
	ListTurns(ctx context.Context, p ListTurnsParams) (*ListTurnsResult, error)
	CountByOutcome(ctx context.Context) (map[Outcome]int, error)
	Close() error
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
