// Package session tracks short-lived authentication sessions that correlate a
// started browser flow with the callback that eventually resolves it.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/standardbeagle/gitlab-mcp/internal/logging"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

const (
	// DefaultTTL is how long a session stays readable after creation.
	DefaultTTL = 10 * time.Minute

	// DefaultSweepInterval is how often Run removes expired sessions.
	DefaultSweepInterval = 5 * time.Minute

	idBytes = 16
)

// Session is a snapshot of a registry record. AuthToken is only set for
// StatusSuccess and Error only for StatusFailed.
type Session struct {
	ID        string    `json:"sessionId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	AuthToken string    `json:"authToken,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (s *Session) expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Registry is an in-memory table of sessions with a fixed TTL.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often Run cleans up expired sessions.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = logging.Component(l, "session")
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:      make(map[string]*Session),
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create inserts a new pending session and returns a copy of it.
func (r *Registry) Create() Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := newID()
	for {
		if _, exists := r.sessions[id]; !exists {
			break
		}
		id = newID()
	}

	now := r.now()
	s := &Session{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.sessions[id] = s

	r.logger.Debug("session created", "session_id", id, "expires_at", s.ExpiresAt)
	return *s
}

// Get returns the session for id. An expired session is removed and reported
// as absent even if the sweep has not reached it yet.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.expired(r.now()) {
		delete(r.sessions, id)
		r.logger.Debug("session expired on read", "session_id", id)
		return Session{}, false
	}
	return *s, true
}

// UpdateStatus moves a pending session to a terminal status. token is kept
// only for StatusSuccess and errMsg only for StatusFailed.
//
// It returns false when the id is unknown or expired, when the session has
// already been resolved, or when status is not terminal. A false return
// leaves the stored record unchanged.
func (r *Registry) UpdateStatus(id string, status Status, token, errMsg string) bool {
	if !status.Terminal() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	if s.expired(r.now()) {
		delete(r.sessions, id)
		return false
	}
	if s.Status != StatusPending {
		r.logger.Debug("session already resolved", "session_id", id, "status", s.Status)
		return false
	}

	s.Status = status
	switch status {
	case StatusSuccess:
		s.AuthToken = token
	case StatusFailed:
		s.Error = errMsg
	}

	r.logger.Debug("session resolved", "session_id", id, "status", status)
	return true
}

// CleanupExpired removes every session past its expiry and returns how many
// were removed.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	count := 0
	for id, s := range r.sessions {
		if s.expired(now) {
			delete(r.sessions, id)
			count++
		}
	}

	if count > 0 {
		r.logger.Debug("cleaned up expired sessions", "count", count)
	}
	return count
}

// Count returns the number of records currently held, expired or not.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps expired sessions on the configured interval until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.CleanupExpired()
		case <-ctx.Done():
			return nil
		}
	}
}

func newID() string {
	b := make([]byte, idBytes)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
