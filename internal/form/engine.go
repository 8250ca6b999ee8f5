// ABOUTME: Engine that steps a Form through its declared fields, one per user turn.
// ABOUTME: Prompts for the next field, assigns replies, and cancels on the quit token.

package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// DefaultQuitToken is the reply that cancels a form mid-collection.
const DefaultQuitToken = "q"

var (
	// ErrUnknownField is returned when a handler requests a field its form
	// never declared. It is a programming error, not a user error.
	ErrUnknownField = errors.New("field not declared on form")

	// ErrUnknownForm is returned when a form name was never registered.
	ErrUnknownForm = errors.New("form not registered")

	// ErrInvalidTransition is returned if a mutation would break the form lifecycle.
	ErrInvalidTransition = errors.New("invalid form transition")
)

// Step describes what a RequestField call did.
type Step int

const (
	// StepNoop means nothing changed: the field already has a value or
	// another field is awaiting its reply.
	StepNoop Step = iota
	// StepPrompted means the field was marked requested and the prompt was sent.
	StepPrompted
	// StepAssigned means the current message was stored as the field's value.
	StepAssigned
	// StepCancelled means the user quit; inputs were discarded.
	StepCancelled
)

func (s Step) String() string {
	switch s {
	case StepNoop:
		return "noop"
	case StepPrompted:
		return "prompted"
	case StepAssigned:
		return "assigned"
	case StepCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// PromptFunc asks the user for a field, typically by sending a chat message.
type PromptFunc func(ctx context.Context) error

// Engine applies the collection policy to forms.
type Engine struct {
	quitToken string
	logger    *slog.Logger
}

// NewEngine creates an engine. An empty quit token falls back to DefaultQuitToken.
func NewEngine(quitToken string, logger *slog.Logger) *Engine {
	if quitToken == "" {
		quitToken = DefaultQuitToken
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		quitToken: quitToken,
		logger:    logger.With("component", "form"),
	}
}

// QuitToken returns the reply that cancels a form.
func (e *Engine) QuitToken() string { return e.quitToken }

// RequestField advances f by at most one step for field, using message as the
// user's reply to the current turn.
//
// Handlers call RequestField for every declared field in order on every turn;
// calls for satisfied fields are no-ops, so each turn moves at most one field
// from unrequested to requested or from requested to filled.
func (e *Engine) RequestField(ctx context.Context, f *Form, field, message string, prompt PromptFunc) (Step, error) {
	if !f.declares(field) {
		return StepNoop, fmt.Errorf("%w: %q on form %q", ErrUnknownField, field, f.name)
	}

	switch f.State() {
	case StateCancelled:
		return StepCancelled, nil
	case StateFilled:
		return StepNoop, nil
	}

	if _, ok := f.inputs[field]; ok {
		return StepNoop, nil
	}

	switch f.requested {
	case "":
		return e.prompt(ctx, f, field, prompt)
	case field:
		if message == e.quitToken {
			return e.cancel(f)
		}
		return e.assign(f, field, message)
	default:
		return StepNoop, nil
	}
}

func (e *Engine) prompt(ctx context.Context, f *Form, field string, prompt PromptFunc) (Step, error) {
	if err := f.transition(StateAwaiting, func() { f.requested = field }); err != nil {
		return StepNoop, err
	}
	if prompt != nil {
		if err := prompt(ctx); err != nil {
			// The user never saw the question, so the next reply must not be
			// taken as its answer.
			f.requested = ""
			return StepNoop, fmt.Errorf("prompting for %q: %w", field, err)
		}
	}
	e.logger.Debug("field requested", "form", f.name, "field", field)
	return StepPrompted, nil
}

func (e *Engine) assign(f *Form, field, value string) (Step, error) {
	to := StateAwaiting
	if len(f.inputs)+1 == len(f.fields) {
		to = StateFilled
	}
	err := f.transition(to, func() {
		f.inputs[field] = value
		f.order = append(f.order, field)
		f.requested = ""
	})
	if err != nil {
		return StepNoop, err
	}
	e.logger.Debug("field assigned", "form", f.name, "field", field, "filled", f.Filled())
	return StepAssigned, nil
}

func (e *Engine) cancel(f *Form) (Step, error) {
	err := f.transition(StateCancelled, func() {
		clear(f.inputs)
		f.order = nil
		f.requested = ""
		f.cancelled = true
	})
	if err != nil {
		return StepNoop, err
	}
	e.logger.Debug("form cancelled", "form", f.name)
	return StepCancelled, nil
}
