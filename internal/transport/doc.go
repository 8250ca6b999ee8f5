// Package transport connects chat backends to the conversation manager.
//
// Each backend (Matrix, Discord, Telegram, console) implements Transport:
// Run delivers normalized Events to a Handler and Send posts replies back to
// a channel. Event.Kind marks one-to-one chats as KindDirect so callers can
// ignore shared rooms. RateLimited wraps any Sender with a token bucket.
package transport
