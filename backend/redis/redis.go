// Package redis implements session.Backend over a shared Redis deployment.
// Users and each dashboard client's session live in Redis, and session
// transitions are broadcast on a per-client pub/sub channel so another
// process can sign a client out while it is running.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmcleod/incorpdash/backend"
	"github.com/jmcleod/incorpdash/internal/util"
	"github.com/jmcleod/incorpdash/session"
	"github.com/jmcleod/incorpdash/token"
)

// DefaultPrefix namespaces every key and channel.
const DefaultPrefix = "incorpdash"

const subscribeTimeout = 5 * time.Second

// Options configures a Backend.
type Options struct {
	// Prefix namespaces keys and channels. Defaults to DefaultPrefix.
	Prefix string
	// ClientID identifies this dashboard instance. Required.
	ClientID string
	// TTL is the session lifetime.
	TTL time.Duration
	// SigningKey is the shared token key. When empty, a key is created in
	// Redis on first use and shared by every process using the prefix.
	SigningKey []byte
}

// event is the payload published on the client channel.
type event struct {
	Session *session.Session `json:"session"`
}

// Backend is a session.Backend and session.Authenticator backed by Redis.
type Backend struct {
	rdb      redis.UniversalClient
	prefix   string
	clientID string
	issuer   *token.Issuer
	logger   *slog.Logger
}

var (
	_ session.Backend       = (*Backend)(nil)
	_ session.Authenticator = (*Backend)(nil)
)

// New creates a Backend. The signing key is resolved against Redis, so ctx
// bounds that round trip.
func New(ctx context.Context, rdb redis.UniversalClient, opts Options, logger *slog.Logger) (*Backend, error) {
	if opts.ClientID == "" {
		return nil, errors.New("redis backend requires a client id")
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		rdb:      rdb,
		prefix:   opts.Prefix,
		clientID: opts.ClientID,
		logger:   logger.With("component", "redis_backend", "client_id", opts.ClientID),
	}
	key := opts.SigningKey
	if len(key) == 0 {
		var err error
		if key, err = b.loadOrCreateSigningKey(ctx); err != nil {
			return nil, err
		}
	}
	issuer, err := token.NewIssuer(key, opts.TTL)
	if err != nil {
		return nil, err
	}
	b.issuer = issuer
	return b, nil
}

func (b *Backend) userKey(email string) string { return b.prefix + ":user:" + email }
func (b *Backend) sessionKey() string         { return b.prefix + ":client:" + b.clientID + ":session" }
func (b *Backend) channel() string            { return b.prefix + ":client:" + b.clientID + ":events" }
func (b *Backend) signingKeyKey() string      { return b.prefix + ":signing_key" }

func (b *Backend) loadOrCreateSigningKey(ctx context.Context) ([]byte, error) {
	fresh, err := util.RandomBytes(backend.SigningKeyLen)
	if err != nil {
		return nil, err
	}
	// SETNX makes concurrent first starts converge on one key.
	if err := b.rdb.SetNX(ctx, b.signingKeyKey(), fresh, 0).Err(); err != nil {
		return nil, fmt.Errorf("creating signing key: %w", err)
	}
	key, err := b.rdb.Get(ctx, b.signingKeyKey()).Bytes()
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	return key, nil
}

// CheckSession returns the client's stored session, or nil. Sessions whose
// token no longer verifies are deleted.
func (b *Backend) CheckSession(ctx context.Context) (*session.Session, error) {
	data, err := b.rdb.Get(ctx, b.sessionKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		b.logger.Warn("discarding corrupt session", "error", err)
		_ = b.rdb.Del(ctx, b.sessionKey()).Err()
		return nil, nil
	}
	if _, err := b.issuer.Verify(s.AccessToken); err != nil {
		b.logger.Info("stored session no longer valid", "error", err)
		_ = b.rdb.Del(ctx, b.sessionKey()).Err()
		return nil, nil
	}
	return &s, nil
}

// SignUp registers a new user and signs them in on this client.
func (b *Backend) SignUp(ctx context.Context, email, password string) (*session.Session, error) {
	user, err := backend.NewUser(email, password)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	created, err := b.rdb.SetNX(ctx, b.userKey(user.Email), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("persisting user: %w", err)
	}
	if !created {
		return nil, session.ErrUserExists
	}
	return b.SignIn(ctx, email, password)
}

// SignIn verifies the credentials, stores the client's session and
// publishes it.
func (b *Backend) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	data, err := b.rdb.Get(ctx, b.userKey(backend.NormalizeEmail(email))).Bytes()
	if errors.Is(err, redis.Nil) {
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
	if err := b.rdb.Set(ctx, b.sessionKey(), encoded, time.Until(expiresAt)).Err(); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	if err := b.publish(ctx, s); err != nil {
		// Subscribers never saw the session, so it must not survive in the
		// store either.
		if delErr := b.rdb.Del(context.WithoutCancel(ctx), b.sessionKey()).Err(); delErr != nil {
			b.logger.Error("removing unpublished session", "error", delErr)
		}
		return nil, err
	}
	return s, nil
}

// SignOut deletes the client's session and publishes the sign-out. Any
// process sharing the client id may call it.
func (b *Backend) SignOut(ctx context.Context) error {
	if err := b.rdb.Del(ctx, b.sessionKey()).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return b.publish(ctx, nil)
}

func (b *Backend) publish(ctx context.Context, s *session.Session) error {
	payload, err := json.Marshal(event{Session: s})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel(), payload).Err(); err != nil {
		return fmt.Errorf("publishing session change: %w", err)
	}
	return nil
}

// Subscribe listens on the client channel. Messages are decoded and
// delivered on a single goroutine in the order Redis delivers them;
// malformed payloads are logged and dropped.
func (b *Backend) Subscribe(fn func(*session.Session)) (session.Subscription, error) {
	ps := b.rdb.Subscribe(context.Background(), b.channel())

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", b.channel(), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var ev event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed session event", "error", err)
				continue
			}
			fn(ev.Session)
		}
	}()

	var once sync.Once
	return session.SubscriptionFunc(func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				b.logger.Warn("closing subscription", "error", err)
			}
			<-done
		})
	}), nil
}
