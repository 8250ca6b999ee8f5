// ABOUTME: Outbox delivers intent handler replies through the turn's transport
// ABOUTME: Every reply is recorded as an outbound ledger turn and broadcast

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-helpdesk/internal/session"
	"github.com/2389/coven-helpdesk/internal/store"
	"github.com/2389/coven-helpdesk/internal/transport"
)

// ErrUnknownTransport is returned when a reply targets a transport that is
// not registered with the outbox.
var ErrUnknownTransport = errors.New("unknown transport")

// Outbox routes replies to the transport a turn arrived on.
type Outbox struct {
	senders     map[string]transport.Sender
	ledger      store.Store
	broadcaster *Broadcaster
	logger      *slog.Logger
}

// NewOutbox creates an outbox over senders keyed by transport name. ledger
// and broadcaster may be nil.
func NewOutbox(senders map[string]transport.Sender, ledger store.Store, broadcaster *Broadcaster, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		senders:     senders,
		ledger:      ledger,
		broadcaster: broadcaster,
		logger:      logger.With("component", "outbox"),
	}
}

// Reply sends text to the channel of turn. The outbound turn is recorded
// whether or not delivery succeeds.
func (o *Outbox) Reply(ctx context.Context, turn session.Context, text string) error {
	sender, ok := o.senders[turn.Transport]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransport, turn.Transport)
	}

	out := &store.Turn{
		Transport: turn.Transport,
		UserID:    turn.UserID,
		ChannelID: turn.ChannelID,
		Direction: store.DirectionOutbound,
		Text:      text,
		Outcome:   store.OutcomeSent,
		CreatedAt: time.Now().UTC(),
	}

	sendErr := sender.Send(ctx, turn.ChannelID, text)
	if sendErr != nil {
		out.Outcome = store.OutcomeFailed
		out.Error = sendErr.Error()
	}
	o.record(ctx, out)

	if sendErr != nil {
		return fmt.Errorf("sending reply via %s: %w", turn.Transport, sendErr)
	}
	o.logger.Debug("reply sent", "transport", turn.Transport, "user_id", turn.UserID, "length", len(text))
	return nil
}

// record persists and broadcasts a turn. Ledger failures are logged, not
// returned.
func (o *Outbox) record(ctx context.Context, turn *store.Turn) {
	recordTurn(ctx, o.ledger, o.broadcaster, o.logger, turn)
}

func recordTurn(ctx context.Context, ledger store.Store, b *Broadcaster, logger *slog.Logger, turn *store.Turn) {
	if ledger != nil {
		// The turn is logged even when the caller's context has ended.
		if err := ledger.SaveTurn(context.WithoutCancel(ctx), turn); err != nil {
			logger.Error("failed to record turn", "user_id", turn.UserID, "outcome", turn.Outcome, "error", err)
			return
		}
	}
	if b != nil {
		b.Publish(*turn)
	}
}
