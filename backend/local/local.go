// Package local implements session.Backend over a durable storage.KV with
// in-process change notifications. It is the default backend for a
// self-contained dashboard.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/incorpdash/backend"
	"github.com/jmcleod/incorpdash/internal/util"
	"github.com/jmcleod/incorpdash/session"
	"github.com/jmcleod/incorpdash/storage"
	"github.com/jmcleod/incorpdash/token"
)

const (
	usersBucket   = "auth_users"
	authBucket    = "auth"
	sessionKey    = "session"
	signingKeyKey = "signing_key"
)

// Backend is a session.Backend and session.Authenticator backed by a KV.
type Backend struct {
	kv     storage.KV
	issuer *token.Issuer
	logger *slog.Logger

	// writeMu serializes state changes with their notifications so
	// subscribers observe transitions in the order they were stored.
	writeMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[uint64]func(*session.Session)
	nextSub uint64
}

var (
	_ session.Backend       = (*Backend)(nil)
	_ session.Authenticator = (*Backend)(nil)
)

// New creates a Backend over kv. Sessions are valid for ttl. The token
// signing key is loaded from kv, or generated and persisted on first use.
func New(kv storage.KV, ttl time.Duration, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key, err := loadOrCreateSigningKey(kv)
	if err != nil {
		return nil, err
	}
	issuer, err := token.NewIssuer(key, ttl)
	if err != nil {
		return nil, err
	}
	return &Backend{
		kv:     kv,
		issuer: issuer,
		logger: logger.With("component", "local_backend"),
		subs:   make(map[uint64]func(*session.Session)),
	}, nil
}

func loadOrCreateSigningKey(kv storage.KV) ([]byte, error) {
	key, err := kv.Get(authBucket, signingKeyKey)
	if err == nil && len(key) == backend.SigningKeyLen {
		return key, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	key, err = util.RandomBytes(backend.SigningKeyLen)
	if err != nil {
		return nil, err
	}
	if err := kv.Put(authBucket, signingKeyKey, key); err != nil {
		return nil, fmt.Errorf("persisting signing key: %w", err)
	}
	return key, nil
}

// CheckSession restores the persisted session. A session whose token no
// longer verifies is removed and reported as absent.
func (b *Backend) CheckSession(ctx context.Context) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := b.kv.Get(authBucket, sessionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		b.logger.Warn("discarding corrupt persisted session", "error", err)
		_ = b.kv.Delete(authBucket, sessionKey)
		return nil, nil
	}
	if _, err := b.issuer.Verify(s.AccessToken); err != nil {
		b.logger.Info("persisted session no longer valid", "error", err)
		_ = b.kv.Delete(authBucket, sessionKey)
		return nil, nil
	}
	return &s, nil
}

// SignUp registers a new user and signs them in.
func (b *Backend) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	user, err := backend.NewUser(email, password)
	if err != nil {
		return nil, err
	}
	b.writeMu.Lock()
	if _, err := b.kv.Get(usersBucket, user.Email); err == nil {
		b.writeMu.Unlock()
		return nil, session.ErrUserExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		b.writeMu.Unlock()
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	data, err := json.Marshal(user)
	if err != nil {
		b.writeMu.Unlock()
		return nil, err
	}
	if err := b.kv.Put(usersBucket, user.Email, data); err != nil {
		b.writeMu.Unlock()
		return nil, fmt.Errorf("persisting user: %w", err)
	}
	b.writeMu.Unlock()
	return b.SignIn(ctx, email, password)
}

// SignIn verifies the credentials, persists a new session and notifies
// subscribers.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := b.kv.Get(usersBucket, backend.NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, session.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	var user backend.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	if !user.CheckPassword(password) {
		return nil, session.ErrInvalidCredentials
	}

	accessToken, expiresAt, err := b.issuer.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	s := &session.Session{
		UserID:      user.ID,
		Email:       user.Email,
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.kv.Put(authBucket, sessionKey, encoded); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	b.publish(s)
	return s.Clone(), nil
}

// SignOut removes the persisted session and notifies subscribers.
func (b *Backend) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.kv.Delete(authBucket, sessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	b.publish(nil)
	return nil
}

// Subscribe registers fn for session transitions.
func (b *Backend) Subscribe(fn func(*session.Session)) (session.Subscription, error) {
	b.subsMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.subsMu.Unlock()

	return session.SubscriptionFunc(func() {
		b.subsMu.Lock()
		delete(b.subs, id)
		b.subsMu.Unlock()
	}), nil
}

// publish delivers s to every subscriber. Callers hold writeMu.
func (b *Backend) publish(s *session.Session) {
	b.subsMu.Lock()
	fns := make([]func(*session.Session), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.subsMu.Unlock()
	for _, fn := range fns {
		fn(s.Clone())
	}
}
