// ABOUTME: Form state for multi-turn input collection within a user session.
// ABOUTME: Tracks declared fields, collected inputs in order, and the field awaiting a reply.

package form

import (
	"fmt"
	"slices"
)

// State is the lifecycle position of a Form.
type State string

const (
	StateNotStarted State = "not_started"
	StateAwaiting   State = "awaiting"
	StateFilled     State = "filled"
	StateCancelled  State = "cancelled"
)

// transitions lists the legal moves between states. Awaiting loops onto
// itself as each field is answered and the next one is requested.
var transitions = map[State][]State{
	StateNotStarted: {StateAwaiting},
	StateAwaiting:   {StateAwaiting, StateFilled, StateCancelled},
	StateFilled:     {},
	StateCancelled:  {},
}

// CanTransition reports whether a form may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// IsTerminal reports whether no further transitions leave the state.
func IsTerminal(s State) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Form is one live instance of a named workflow. It is owned by whichever
// goroutine is processing the user's current turn and is not safe for
// concurrent use on its own.
type Form struct {
	name      string
	fields    []string
	inputs    map[string]string
	order     []string
	requested string
	cancelled bool
}

func newForm(name string, fields []string) *Form {
	return &Form{
		name:   name,
		fields: fields,
		inputs: make(map[string]string, len(fields)),
	}
}

// Name returns the registered form name.
func (f *Form) Name() string { return f.name }

// Fields returns the declared field names in collection order.
func (f *Form) Fields() []string { return slices.Clone(f.fields) }

// Requested returns the field currently awaiting a reply, if any.
func (f *Form) Requested() (string, bool) {
	return f.requested, f.requested != ""
}

// Value returns the collected value for a field.
func (f *Form) Value(field string) (string, bool) {
	v, ok := f.inputs[field]
	return v, ok
}

// Inputs returns the collected field/value pairs in the order they were collected.
func (f *Form) Inputs() []Input {
	out := make([]Input, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, Input{Field: name, Value: f.inputs[name]})
	}
	return out
}

// Input is one collected field value.
type Input struct {
	Field string
	Value string
}

// Filled reports whether every declared field has a value.
func (f *Form) Filled() bool {
	return len(f.inputs) == len(f.fields)
}

// Cancelled reports whether the user quit the form.
func (f *Form) Cancelled() bool { return f.cancelled }

// State derives the lifecycle state from the collected data.
func (f *Form) State() State {
	switch {
	case f.cancelled:
		return StateCancelled
	case f.Filled():
		return StateFilled
	case f.requested != "" || len(f.inputs) > 0:
		return StateAwaiting
	default:
		return StateNotStarted
	}
}

func (f *Form) declares(field string) bool {
	return slices.Contains(f.fields, field)
}

func (f *Form) String() string {
	return fmt.Sprintf("form %s [%s] %d/%d", f.name, f.State(), len(f.inputs), len(f.fields))
}

func (f *Form) transition(to State, mutate func()) error {
	from := f.State()
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s to %s on form %q", ErrInvalidTransition, from, to, f.name)
	}
	mutate()
	return nil
}
