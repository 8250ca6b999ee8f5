// ABOUTME: Transport abstractions shared by every chat backend
// ABOUTME: Defines inbound Event, the Sender contract, and the Transport lifecycle

package transport

import (
	"context"
	"errors"
	"time"
)

// ErrNotRunning is returned by Send before Run has connected the transport.
var ErrNotRunning = errors.New("transport not running")

// Kind distinguishes one-to-one conversations from shared rooms.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Event is one inbound chat message, normalized across backends.
type Event struct {
	ID         string // backend event id, unique within Transport
	Transport  string
	Kind       Kind
	UserID     string
	ChannelID  string
	Text       string
	ReceivedAt time.Time

	// Busy, when set, is called as processing of the event starts; the
	// returned func is called when it ends. Matrix uses it for typing
	// notifications.
	Busy func() (done func())
}

// Key is the dedupe key for the event: "<transport>:<id>".
func (e Event) Key() string {
	return e.Transport + ":" + e.ID
}

// Handler receives inbound events. Transports call it from their receive
// loop and rely on it returning promptly: processing happens elsewhere.
// Implementations must be safe for concurrent use.
type Handler func(ctx context.Context, evt Event)

// Sender delivers text to a channel on some backend.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, channelID, text string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, channelID, text string) error {
	return f(ctx, channelID, text)
}

// Transport is a connected chat backend.
type Transport interface {
	Sender
	// Name is the stable backend name used in dedupe keys and the ledger.
	Name() string
	// Run connects, delivers events to h until ctx is cancelled, then
	// disconnects. It returns nil on clean shutdown.
	Run(ctx context.Context, h Handler) error
	// Ready reports whether the transport is currently connected.
	Ready() bool
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
