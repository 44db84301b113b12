// Package app is the dashboard's application root. It constructs the
// session and preference stores once, wires the auth change listener, and
// owns their startup and teardown order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcleod/incorpdash/preference"
	"github.com/jmcleod/incorpdash/session"
	"github.com/jmcleod/incorpdash/storage"
)

// Config carries the runtime settings of an App.
type Config struct {
	// AuthTimeout bounds session checks and sign-out calls.
	AuthTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = session.DefaultTimeout
	}
	return c
}

// App owns the dashboard state. Construct it with New, call Start before
// serving any protected route, and Close on shutdown.
type App struct {
	cfg      Config
	backend  session.Backend
	logger   *slog.Logger
	listener *session.Listener

	Sessions    *session.Store
	Preferences *preference.Store
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// New constructs the stores. Nothing talks to the backend until Start.
func New(cfg Config, backend session.Backend, kv storage.KV, applier preference.Applier, opts ...Option) *App {
	a := &App{
		cfg:     cfg.withDefaults(),
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Sessions = session.NewStore(backend,
		session.WithTimeout(a.cfg.AuthTimeout),
		session.WithLogger(a.logger),
	)
	a.Preferences = preference.New(kv, applier, a.logger)
	return a
}

// Authenticator returns the backend's credential interface, if it has one.
func (a *App) Authenticator() (session.Authenticator, bool) {
	auth, ok := a.backend.(session.Authenticator)
	return auth, ok
}

// Start rehydrates preferences, registers the auth change listener and then
// checks for an existing session. The listener is registered first so no
// transition between the check and the subscription is lost; a notification
// that lands while the check is outstanding wins over the check result.
//
// A failed session check is logged and leaves the user logged out; only a
// failed subscription is returned as an error.
func (a *App) Start(ctx context.Context) error {
	if a.listener != nil {
		return errors.New("app already started")
	}
	a.Preferences.Load()

	l, err := session.Listen(a.backend, a.Sessions, a.logger)
	if err != nil {
		return fmt.Errorf("starting auth listener: %w", err)
	}
	a.listener = l

	if err := a.Sessions.Check(ctx); err != nil {
		a.logger.Warn("session check failed, continuing logged out", "error", err)
	}
	a.logger.Info("dashboard started", "authenticated", a.Sessions.IsAuthenticated(), "dark_mode", a.Preferences.DarkMode())
	return nil
}

// Close releases the auth listener. It is safe to call more than once and
// before Start.
func (a *App) Close() {
	if a.listener != nil {
		a.listener.Close()
	}
}
