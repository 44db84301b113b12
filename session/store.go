package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds CheckSession and SignOut calls to the backend.
const DefaultTimeout = 10 * time.Second

// Store owns the current session. IsAuthenticated is derived from the
// session on every read and is never stored.
type Store struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.RWMutex
	current    *Session
	generation uint64
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout sets the bound applied to backend calls. Zero or negative
// values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty (logged out) Store bound to backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// Session returns a copy of the current session, or nil when logged out or
// when the session's validity window has passed.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.Expired(s.now()) {
		return nil
	}
	return s.current.Clone()
}

// IsAuthenticated reports whether a current, unexpired session exists.
func (s *Store) IsAuthenticated() bool {
	return s.Session() != nil
}

// Set replaces the current session wholesale. A nil session logs out.
func (s *Store) Set(session *Session) {
	s.mu.Lock()
	s.current = session.Clone()
	s.generation++
	s.mu.Unlock()
}

// Check asks the backend for an existing session and installs it. A backend
// failure is treated as "no session" and returned for logging.
//
// If Set is called while the check is outstanding (a listener notification
// arrived), the later write wins and the check result is discarded.
func (s *Store) Check(ctx context.Context) error {
	s.mu.RLock()
	started := s.generation
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	session, err := s.backend.CheckSession(ctx)
	if err != nil {
		session = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != started {
		s.logger.Debug("discarding stale session check", "generation", s.generation)
		return err
	}
	s.current = session.Clone()
	s.generation++
	return err
}

// SignOut asks the backend to invalidate the session, then clears local
// state whether or not the backend call succeeded. The backend error is
// returned so the caller can log it; it never leaves the store logged in.
func (s *Store) SignOut(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.backend.SignOut(ctx)
	s.Set(nil)
	return err
}
