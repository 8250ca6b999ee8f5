// Package conversation turns inbound chat events into intent handler calls.
//
// # Pipeline
//
// Transports hand events to Manager.Handler, which only enqueues them on
// the sending user's FIFO. A worker per active user then runs, for each
// event in delivery order:
//
//  1. Drop events from shared rooms when Config.DirectOnly is set.
//  2. Observe "<transport>:<event id>" in the dedupe cache; repeats are
//     dropped without side effects.
//  3. Create the user's session, or attach the turn to it.
//  4. Classify the message when the session has no sticky intent.
//  5. Dispatch to the intent's handler (or the fallback).
//
// A slow classification delays only that user's later turns; other users
// have their own workers. HandleEvent goes through the same queue and waits
// for the outcome. When classification or dispatch fails the event key is
// forgotten so a re-delivery is processed again.
//
// # Ledger
//
// Every inbound event except a duplicate is recorded in the store with its
// outcome (handled, ignored, failed); duplicates are only logged at debug.
// Replies go through an Outbox, which sends via the originating transport
// and records an outbound turn. Recorded turns are also published on the
// Broadcaster for live viewers.
package conversation
