// ABOUTME: Sharded in-memory registry of user sessions.
// ABOUTME: Creates, looks up, mutates, clears, and sweeps sessions keyed by user id.

package session

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/coven-helpdesk/internal/form"
)

// ErrNoSession is returned when an operation needs a session that does not exist.
var ErrNoSession = errors.New("no session for user")

const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry owns every user's Session. Map lookups are spread over shards
// and each Session carries its own lock, so operations on one user are
// linearizable while different users do not wait on each other.
type Registry struct {
	shards    [shardCount]*shard
	templates *form.Templates
	logger    *slog.Logger
	now       func() time.Time
}

// NewRegistry creates an empty registry. templates may be nil when no forms
// are registered.
func NewRegistry(templates *form.Templates, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		templates: templates,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Get returns the user's session if one exists.
func (r *Registry) Get(userID string) (*Session, bool) {
	sh := r.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[userID]
	return s, ok
}

func (r *Registry) mustGet(userID string) (*Session, error) {
	s, ok := r.Get(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, userID)
	}
	return s, nil
}

// IsNewUser reports whether no session exists for the user.
func (r *Registry) IsNewUser(userID string) bool {
	_, ok := r.Get(userID)
	return !ok
}

// CreateSession registers a session for c.UserID with c as its first turn.
// If the user already has a session it is returned unchanged.
func (r *Registry) CreateSession(c Context) *Session {
	sh := r.shardFor(c.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if s, ok := sh.sessions[c.UserID]; ok {
		return s
	}
	s := newSession(c, r.templates, r.now())
	sh.sessions[c.UserID] = s
	r.logger.Debug("session created", "user_id", c.UserID)
	return s
}

// IsNewTurn reports whether the user has a session and c has not been
// attached to it yet.
func (r *Registry) IsNewTurn(c Context) bool {
	s, ok := r.Get(c.UserID)
	if !ok {
		return false
	}
	return !s.isCurrent(c)
}

// AttachTurn records c as the user's latest turn.
func (r *Registry) AttachTurn(c Context) error {
	s, err := r.mustGet(c.UserID)
	if err != nil {
		return err
	}
	s.attach(c, r.now())
	return nil
}

// CurrentIntent returns the user's sticky intent, if any.
func (r *Registry) CurrentIntent(userID string) (string, bool) {
	s, ok := r.Get(userID)
	if !ok {
		return "", false
	}
	return s.Intent()
}

// SetCurrentIntent stores the user's sticky intent.
func (r *Registry) SetCurrentIntent(userID, label string) error {
	s, err := r.mustGet(userID)
	if err != nil {
		return err
	}
	s.SetIntent(label)
	return nil
}

// GetOrCreateForm returns the user's live instance of the named form.
func (r *Registry) GetOrCreateForm(userID, name string) (*form.Form, error) {
	s, err := r.mustGet(userID)
	if err != nil {
		return nil, err
	}
	return s.Form(name)
}

// ClearSession unsets the user's intent and discards their forms. The
// session entry is kept. Clearing an unknown user is a no-op.
func (r *Registry) ClearSession(userID string) {
	if s, ok := r.Get(userID); ok {
		s.Clear()
		r.logger.Debug("session cleared", "user_id", userID)
	}
}

// Sweep removes sessions whose last turn is older than maxIdle and returns
// how many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if s.LastSeen().Before(cutoff) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		r.logger.Info("swept idle sessions", "removed", removed, "max_idle", maxIdle)
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}
