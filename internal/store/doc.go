// Package store persists the helpdesk turn ledger.
//
// Every inbound message the conversation manager sees is recorded as a Turn
// together with its outcome (handled, duplicate, ignored, failed), and every
// reply sent back to a user is recorded as an outbound turn. The ledger is an
// audit trail only: session and form state live in memory and are never
// rebuilt from it.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite, WAL mode, RFC3339 timestamps
//   - MemoryStore: in-process slice, used in tests and when no database
//     path is configured
//
// # Pagination
//
// ListTurns returns turns oldest first. Limit defaults to 50 and is capped at
// 500. When HasMore is set, pass NextCursor back as Cursor to continue.
//
//	p := store.ListTurnsParams{UserID: "@alice:example.org"}
//	res, err := s.ListTurns(ctx, p)
//	for err == nil && res.HasMore {
//		p.Cursor = res.NextCursor
//		res, err = s.ListTurns(ctx, p)
//	}
package store
