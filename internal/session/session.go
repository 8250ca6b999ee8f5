// ABOUTME: Per-user session aggregate holding the latest turn, sticky intent, and live forms.
// ABOUTME: Each session guards its own state so different users never share a lock.

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/2389/coven-helpdesk/internal/form"
)

// Context identifies one inbound interaction: who sent it, where replies go,
// and the raw text of the turn.
type Context struct {
	Transport  string // backend the turn arrived on; replies go back through it
	UserID     string
	ChannelID  string
	Message    string
	ReceivedAt time.Time
}

// Same reports whether two contexts describe the same turn.
func (c Context) Same(o Context) bool {
	return c.Transport == o.Transport &&
		c.UserID == o.UserID &&
		c.ChannelID == o.ChannelID &&
		c.Message == o.Message &&
		c.ReceivedAt.Equal(o.ReceivedAt)
}

// Session is the state kept for one user across turns.
type Session struct {
	mu        sync.Mutex
	userID    string
	current   Context
	intent    string
	forms     map[string]*form.Form
	templates *form.Templates
	createdAt time.Time
	lastSeen  time.Time
}

func newSession(c Context, templates *form.Templates, now time.Time) *Session {
	return &Session{
		userID:    c.UserID,
		current:   c,
		forms:     make(map[string]*form.Form),
		templates: templates,
		createdAt: now,
		lastSeen:  now,
	}
}

// UserID returns the user the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Context returns the most recently attached turn.
func (s *Session) Context() Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Intent returns the sticky intent label, if one is set.
func (s *Session) Intent() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intent, s.intent != ""
}

// SetIntent replaces the sticky intent. An empty label unsets it.
func (s *Session) SetIntent(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = label
}

// Form returns the live instance of the named form, creating it from its
// template on first use. Unregistered names return form.ErrUnknownForm.
func (s *Session) Form(name string) (*form.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.forms[name]; ok {
		return f, nil
	}
	if s.templates == nil {
		return nil, fmt.Errorf("%w: %q (no templates registered)", form.ErrUnknownForm, name)
	}
	f, err := s.templates.New(name)
	if err != nil {
		return nil, err
	}
	s.forms[name] = f
	return f, nil
}

// ActiveForms returns the names of forms with a live instance.
func (s *Session) ActiveForms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.forms))
	for name := range s.forms {
		names = append(names, name)
	}
	return names
}

// Clear unsets the intent and discards every live form. The session itself
// stays registered so the user is not treated as new on their next message.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = ""
	clear(s.forms)
}

// LastSeen returns when a turn was last attached.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// CreatedAt returns when the session was first created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) attach(c Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = c
	s.lastSeen = now
}

func (s *Session) isCurrent(c Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Same(c)
}
