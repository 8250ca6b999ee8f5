// ABOUTME: Set groups the configured transports by name
// ABOUTME: Resolves reply senders for events and reports aggregate readiness

package transport

import (
	"fmt"
	"sort"
)

// Set is an immutable collection of transports keyed by Name.
type Set struct {
	byName map[string]Transport
}

// NewSet builds a Set. Duplicate names are rejected.
func NewSet(ts ...Transport) (*Set, error) {
	s := &Set{byName: make(map[string]Transport, len(ts))}
	for _, t := range ts {
		name := t.Name()
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("duplicate transport %q", name)
		}
		s.byName[name] = t
	}
	return s, nil
}

// Get returns the transport registered under name.
func (s *Set) Get(name string) (Transport, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Names returns transport names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the transports in name order.
func (s *Set) All() []Transport {
	out := make([]Transport, 0, len(s.byName))
	for _, name := range s.Names() {
		out = append(out, s.byName[name])
	}
	return out
}

// Len returns the number of transports.
func (s *Set) Len() int { return len(s.byName) }

// Ready is true when the set is non-empty and every transport is connected.
func (s *Set) Ready() bool {
	if len(s.byName) == 0 {
		return false
	}
	for _, t := range s.byName {
		if !t.Ready() {
			return false
		}
	}
	return true
}

// Status maps each transport name to its readiness.
func (s *Set) Status() map[string]bool {
	out := make(map[string]bool, len(s.byName))
	for name, t := range s.byName {
		out[name] = t.Ready()
	}
	return out
}
