// Package session keeps per-user conversation state in memory.
//
// A Registry maps user ids to Sessions. A Session holds the latest turn
// Context, the sticky intent label resolved for the conversation, and the
// live Form instance for each form the user has engaged.
//
// Contract choices:
//
//   - CreateSession is idempotent: calling it for an existing user returns
//     the existing session untouched.
//   - ClearSession resets the intent and discards forms but keeps the entry,
//     so IsNewUser stays false for a returning user.
//   - Sessions idle longer than the configured TTL are removed by Sweep.
//
// Nothing here is persisted; state lasts for the life of the process.
package session
