// ABOUTME: Router that maps resolved intent labels to handlers and invokes them.
// ABOUTME: Unknown labels fall through to the handler registered as "fallback".

package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/2389/coven-helpdesk/internal/session"
)

// Fallback is the reserved label whose handler receives unmatched intents.
const Fallback = "fallback"

// Router errors
var (
	// ErrMissingFallback means no handler was registered under Fallback.
	ErrMissingFallback = errors.New("no fallback intent handler registered")

	// ErrNilHandler means a label was registered with a nil handler.
	ErrNilHandler = errors.New("nil intent handler")
)

// Handler reacts to one turn of a conversation whose intent has been resolved.
// It sends replies through its own collaborators and signals completion by
// clearing the session.
type Handler interface {
	Handle(ctx context.Context, sess *session.Session, turn session.Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, sess *session.Session, turn session.Context) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, sess *session.Session, turn session.Context) error {
	return f(ctx, sess, turn)
}

// Router dispatches turns to intent handlers. The handler map is fixed at
// construction and safe for concurrent dispatch.
type Router struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRouter validates the handler map and returns a Router.
func NewRouter(handlers map[string]Handler, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]Handler, len(handlers))
	for label, h := range handlers {
		if label == "" {
			return nil, errors.New("intent label cannot be empty")
		}
		if h == nil {
			return nil, fmt.Errorf("%w: %q", ErrNilHandler, label)
		}
		m[label] = h
	}
	if _, ok := m[Fallback]; !ok {
		return nil, ErrMissingFallback
	}
	return &Router{
		handlers: m,
		logger:   logger.With("component", "intent"),
	}, nil
}

// Resolve returns the label that will actually handle the given intent:
// the label itself when registered, otherwise Fallback.
func (r *Router) Resolve(label string) (string, Handler) {
	if h, ok := r.handlers[label]; ok {
		return label, h
	}
	return Fallback, r.handlers[Fallback]
}

// Dispatch invokes exactly one handler for label and returns its error.
func (r *Router) Dispatch(ctx context.Context, label string, sess *session.Session, turn session.Context) error {
	resolved, h := r.Resolve(label)
	if resolved != label {
		r.logger.Debug("unknown intent, using fallback", "intent", label, "user_id", turn.UserID)
	}
	if err := h.Handle(ctx, sess, turn); err != nil {
		return fmt.Errorf("handling intent %q: %w", resolved, err)
	}
	return nil
}

// Labels returns the registered labels, including Fallback, sorted.
func (r *Router) Labels() []string {
	labels := make([]string, 0, len(r.handlers))
	for label := range r.handlers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
