// ABOUTME: In-memory fan-out of ledger turns to live subscribers
// ABOUTME: Subscribers follow one user's turns or, with an empty key, every turn

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-helpdesk/internal/store"
)

const (
	subscriberBufferSize = 64

	// AllUsers subscribes to turns from every user.
	AllUsers = ""
)

type subscription struct {
	userID  string
	ch      chan store.Turn
	dropped int // turns missed because ch was full; guarded by Broadcaster.mu
}

func (s *subscription) wants(turn store.Turn) bool {
	return s.userID == AllUsers || s.userID == turn.UserID
}

// Broadcaster publishes every recorded turn, whatever its outcome, so a
// live view shows failures as they happen. Publishing never blocks: a
// subscriber whose buffer is full misses the turn.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
	logger *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subs:   make(map[string]*subscription),
		logger: logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for turns belonging to userID (AllUsers for every
// turn) and returns the channel and subscription id. The channel closes
// when ctx is done, on Unsubscribe, or on Close. Subscribing to a closed
// broadcaster yields an already closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context, userID string) (<-chan store.Turn, string) {
	sub := &subscription{userID: userID, ch: make(chan store.Turn, subscriberBufferSize)}
	id := uuid.New().String()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, id
	}
	b.subs[id] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "user_id", userID, "sub_id", id)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(id)
	}()
	return sub.ch, id
}

// Publish offers turn to every interested subscriber.
func (b *Broadcaster) Publish(turn store.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.wants(turn) {
			continue
		}
		select {
		case sub.ch <- turn:
		default:
			sub.dropped++
		}
	}
}

// Unsubscribe ends a subscription and closes its channel. Unknown ids are
// ignored.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	sub, ok := b.subs[subID]
	if ok {
		delete(b.subs, subID)
		close(sub.ch)
	}
	b.mu.Unlock()

	if ok {
		b.logger.Debug("subscriber removed", "user_id", sub.userID, "sub_id", subID, "dropped", sub.dropped)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later Publish calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
	b.closed = true
}
