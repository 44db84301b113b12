package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// Listener forwards backend session notifications to a Store for the
// lifetime of the application. Close releases the subscription.
type Listener struct {
	sub       Subscription
	closeOnce sync.Once
}

// Listen registers a single subscription on backend. Every notification is
// applied verbatim to store with Set, in delivery order.
func Listen(backend Backend, store *Store, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth_listener")
	sub, err := backend.Subscribe(func(session *Session) {
		store.Set(session)
		if session == nil {
			logger.Info("session cleared")
			return
		}
		logger.Info("session changed", "user_id", session.UserID)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to session changes: %w", err)
	}
	return &Listener{sub: sub}, nil
}

// Close unsubscribes from the backend. It is safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(l.sub.Unsubscribe)
}
