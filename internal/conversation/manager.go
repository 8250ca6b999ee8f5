// ABOUTME: Manager runs the per-event pipeline: filter, dedupe, session upkeep, classify, dispatch
// ABOUTME: Turns queue per user and run in arrival order; different users proceed concurrently

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/coven-helpdesk/internal/classifier"
	"github.com/2389/coven-helpdesk/internal/dedupe"
	"github.com/2389/coven-helpdesk/internal/intent"
	"github.com/2389/coven-helpdesk/internal/session"
	"github.com/2389/coven-helpdesk/internal/store"
	"github.com/2389/coven-helpdesk/internal/transport"
)

// Config tunes the pipeline.
type Config struct {
	// DirectOnly drops events from shared rooms before deduplication.
	DirectOnly bool
	// Prompt is the system prompt sent with every classification.
	Prompt string
	// Examples are few-shot messages placed between prompt and user message.
	Examples []classifier.Example
	// MaxTokens overrides the classifier's completion limit when positive.
	MaxTokens int64
}

// Sessions is the part of session.Registry the pipeline uses.
type Sessions interface {
	IsNewUser(userID string) bool
	CreateSession(c session.Context) *session.Session
	IsNewTurn(c session.Context) bool
	AttachTurn(c session.Context) error
	Get(userID string) (*session.Session, bool)
	Len() int
}

// Deps are the collaborators a Manager drives. Ledger and Broadcaster are
// optional.
type Deps struct {
	Dedupe      *dedupe.Cache
	Sessions    Sessions
	Router      *intent.Router
	Classifier  classifier.Classifier
	Ledger      store.Store
	Broadcaster *Broadcaster
}

// Manager handles inbound events end to end.
type Manager struct {
	deps   Deps
	cfg    Config
	queues *userQueues
	logger *slog.Logger
}

// NewManager validates deps and builds a Manager.
func NewManager(deps Deps, cfg Config, logger *slog.Logger) (*Manager, error) {
	switch {
	case deps.Dedupe == nil:
		return nil, errors.New("conversation: dedupe cache is required")
	case deps.Sessions == nil:
		return nil, errors.New("conversation: session registry is required")
	case deps.Router == nil:
		return nil, errors.New("conversation: intent router is required")
	case deps.Classifier == nil:
		return nil, errors.New("conversation: classifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		deps:   deps,
		cfg:    cfg,
		queues: newUserQueues(),
		logger: logger.With("component", "conversation"),
	}, nil
}

type result struct {
	outcome store.Outcome
	err     error
}

// Enqueue queues evt behind the user's earlier events and returns at once.
// The outcome is logged and recorded, not reported.
func (m *Manager) Enqueue(ctx context.Context, evt transport.Event) {
	m.queues.Push(evt.UserID, func() {
		_, _ = m.handle(ctx, evt)
	})
}

// HandleEvent queues evt like Enqueue and waits for its outcome.
//
// Events from shared rooms are ignored when DirectOnly is set. Events whose
// key was already observed are dropped as duplicates. Otherwise the user's
// session is created or advanced, an intent is classified if none is sticky,
// and the matching handler runs. A failed event is released from the dedupe
// cache so a re-delivery can retry it.
func (m *Manager) HandleEvent(ctx context.Context, evt transport.Event) (store.Outcome, error) {
	done := make(chan result, 1)
	m.queues.Push(evt.UserID, func() {
		outcome, err := m.handle(ctx, evt)
		done <- result{outcome, err}
	})
	r := <-done
	return r.outcome, r.err
}

// Wait blocks until every queued event has been handled. Call it after the
// transports have stopped delivering.
func (m *Manager) Wait() {
	m.queues.Wait()
}

// handle runs on the user's queue worker.
func (m *Manager) handle(ctx context.Context, evt transport.Event) (store.Outcome, error) {
	inbound := &store.Turn{
		EventID:   evt.ID,
		Transport: evt.Transport,
		UserID:    evt.UserID,
		ChannelID: evt.ChannelID,
		Direction: store.DirectionInbound,
		Text:      evt.Text,
		CreatedAt: evt.ReceivedAt,
	}

	if m.cfg.DirectOnly && evt.Kind != transport.KindDirect {
		m.logger.Debug("ignoring non-direct message", "transport", evt.Transport, "channel_id", evt.ChannelID)
		inbound.Outcome = store.OutcomeIgnored
		m.record(ctx, inbound)
		return store.OutcomeIgnored, nil
	}

	key := evt.Key()
	if !m.deps.Dedupe.Observe(key) {
		m.logger.Debug("dropping duplicate event", "key", key, "user_id", evt.UserID)
		return store.OutcomeDuplicate, nil
	}

	if evt.Busy != nil {
		defer evt.Busy()()
	}

	label, err := m.process(ctx, evt)
	inbound.Intent = label
	if err != nil {
		m.deps.Dedupe.Forget(key)
		m.logger.Error("event processing failed",
			"key", key,
			"user_id", evt.UserID,
			"intent", label,
			"error", err,
		)
		inbound.Outcome = store.OutcomeFailed
		inbound.Error = err.Error()
		m.record(ctx, inbound)
		return store.OutcomeFailed, err
	}

	inbound.Outcome = store.OutcomeHandled
	m.record(ctx, inbound)
	return store.OutcomeHandled, nil
}

// process runs the session, classification, and dispatch steps for a fresh
// event and returns the resolved intent label.
func (m *Manager) process(ctx context.Context, evt transport.Event) (string, error) {
	turn := session.Context{
		Transport:  evt.Transport,
		UserID:     evt.UserID,
		ChannelID:  evt.ChannelID,
		Message:    evt.Text,
		ReceivedAt: evt.ReceivedAt,
	}

	sessions := m.deps.Sessions
	var sess *session.Session
	if sessions.IsNewUser(evt.UserID) {
		sess = sessions.CreateSession(turn)
		m.logger.Info("new user", "user_id", evt.UserID, "transport", evt.Transport)
	} else {
		if sessions.IsNewTurn(turn) {
			err := sessions.AttachTurn(turn)
			switch {
			case errors.Is(err, session.ErrNoSession):
				// Swept as idle since IsNewUser; Get below starts over
			case err != nil:
				return "", fmt.Errorf("attaching turn: %w", err)
			}
		}
		var ok bool
		sess, ok = sessions.Get(evt.UserID)
		if !ok {
			sess = sessions.CreateSession(turn)
			m.logger.Info("session expired, starting a new one", "user_id", evt.UserID)
		}
	}

	label, ok := sess.Intent()
	if !ok {
		classified, err := m.classify(ctx, evt.Text)
		if err != nil {
			return "", err
		}
		label = classified
		sess.SetIntent(label)
		m.logger.Debug("intent classified", "user_id", evt.UserID, "intent", label)
	}

	resolved, _ := m.deps.Router.Resolve(label)
	if err := m.deps.Router.Dispatch(ctx, label, sess, turn); err != nil {
		return resolved, err
	}
	return resolved, nil
}

func (m *Manager) classify(ctx context.Context, message string) (string, error) {
	var opts []classifier.Option
	if m.cfg.MaxTokens > 0 {
		opts = append(opts, classifier.WithMaxTokens(m.cfg.MaxTokens))
	}
	label, err := m.deps.Classifier.Classify(ctx, message, m.cfg.Prompt, m.cfg.Examples, opts...)
	if err != nil {
		return "", fmt.Errorf("classifying message: %w", err)
	}
	return strings.TrimSpace(label), nil
}

func (m *Manager) record(ctx context.Context, turn *store.Turn) {
	recordTurn(ctx, m.deps.Ledger, m.deps.Broadcaster, m.logger, turn)
}

// Handler adapts the manager to a transport receive loop. It only
// enqueues, so a slow turn never holds up the transport.
func (m *Manager) Handler() transport.Handler {
	return m.Enqueue
}

// Stats is a point-in-time view of the manager's in-memory state.
type Stats struct {
	Sessions    int `json:"sessions"`
	SeenEvents  int `json:"seen_events"`
	ActiveUsers int `json:"active_users"` // users with queued or running turns
	Subscribers int `json:"subscribers"`
}

// Stats reports session, dedupe, and queue counts.
func (m *Manager) Stats() Stats {
	s := Stats{
		Sessions:    m.deps.Sessions.Len(),
		SeenEvents:  m.deps.Dedupe.Len(),
		ActiveUsers: m.queues.Len(),
	}
	if m.deps.Broadcaster != nil {
		s.Subscribers = m.deps.Broadcaster.Subscribers()
	}
	return s
}
