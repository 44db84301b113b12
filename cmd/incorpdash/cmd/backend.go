package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jmcleod/incorpdash/backend/local"
	redisbackend "github.com/jmcleod/incorpdash/backend/redis"
	"github.com/jmcleod/incorpdash/session"
	"github.com/jmcleod/incorpdash/storage"
)

const (
	backendLocal = "local"
	backendRedis = "redis"
)

// newLogger returns the JSON logger every component shares.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func resolveClientID() (string, error) {
	if clientID != "" {
		return clientID, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("client id not set and hostname unavailable: %w", err)
	}
	return host, nil
}

// openBackend builds the configured auth backend. The returned close
// function releases backend connections and is never nil.
func openBackend(ctx context.Context, kv storage.KV, logger *slog.Logger) (session.Backend, func(), error) {
	switch backendKind {
	case backendLocal:
		b, err := local.New(kv, sessionTTL, logger)
		if err != nil {
			return nil, nil, err
		}
		return b, func() {}, nil
	case backendRedis:
		id, err := resolveClientID()
		if err != nil {
			return nil, nil, err
		}
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
		}
		b, err := redisbackend.New(ctx, rdb, redisbackend.Options{
			Prefix:   redisPrefix,
			ClientID: id,
			TTL:      sessionTTL,
		}, logger)
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return b, func() { rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want %s or %s)", backendKind, backendLocal, backendRedis)
	}
}
