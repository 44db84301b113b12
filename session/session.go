// Package session holds the dashboard's authentication session lifecycle:
// the Store that owns the current session, and the Listener that keeps it
// synchronized with the auth backend.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned by SignIn for an unknown email or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned by SignUp when the email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidInput is returned for malformed email or password input.
	ErrInvalidInput = errors.New("invalid input")
)

// Session is the proof of an authenticated identity issued by the auth
// backend. A nil *Session means logged out.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Clone returns a copy of s, or nil when s is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Expired reports whether the session's validity window has ended at now.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Subscription is the handle returned by Backend.Subscribe.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// Backend is the external auth service as seen by the dashboard.
type Backend interface {
	// CheckSession returns the session restored from persisted credentials,
	// or nil when there is none.
	CheckSession(ctx context.Context) (*Session, error)
	// SignOut invalidates the current session on the backend.
	SignOut(ctx context.Context) error
	// Subscribe registers fn for every session transition. Notifications
	// are delivered one at a time, in the order the backend produced them.
	Subscribe(fn func(*Session)) (Subscription, error)
}

// Authenticator is implemented by backends that accept credentials.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
}
