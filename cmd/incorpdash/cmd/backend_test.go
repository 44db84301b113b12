package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/incorpdash/backend/local"
	redisbackend "github.com/jmcleod/incorpdash/backend/redis"
	"github.com/jmcleod/incorpdash/session"
	bboltstorage "github.com/jmcleod/incorpdash/storage/bbolt"
	"github.com/jmcleod/incorpdash/storage/memory"
)

// withFlags restores the package-level flag values after a test.
func withFlags(t *testing.T) {
	t.Helper()
	saved := []any{backendKind, redisAddr, redisPrefix, clientID, sessionTTL, logLevel}
	savedDataDir, savedAuthTimeout := dataDir, authTimeout
	t.Cleanup(func() {
		dataDir = savedDataDir
		authTimeout = savedAuthTimeout
		backendKind = saved[0].(string)
		redisAddr = saved[1].(string)
		redisPrefix = saved[2].(string)
		clientID = saved[3].(string)
		sessionTTL = saved[4].(time.Duration)
		logLevel = saved[5].(string)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "component", "test")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(&buf, "loud")
	assert.Error(t, err)
}

func TestOpenBackendLocal(t *testing.T) {
	withFlags(t)
	backendKind = backendLocal
	sessionTTL = time.Hour

	b, closeFn, err := openBackend(context.Background(), memory.New(), nil)
	require.NoError(t, err)
	defer closeFn()
	_, ok := b.(*local.Backend)
	assert.True(t, ok)
}

func TestOpenBackendUnknown(t *testing.T) {
	withFlags(t)
	backendKind = "ldap"

	_, _, err := openBackend(context.Background(), memory.New(), nil)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestRevokeRedisClient(t *testing.T) {
	withFlags(t)
	mr := miniredis.RunT(t)
	backendKind = backendRedis
	redisAddr = mr.Addr()
	redisPrefix = "test"
	clientID = "laptop"
	sessionTTL = time.Hour
	ctx := context.Background()

	b, closeFn, err := openBackend(ctx, nil, nil)
	require.NoError(t, err)
	defer closeFn()
	rb, ok := b.(*redisbackend.Backend)
	require.True(t, ok)

	_, err = rb.SignUp(ctx, "founder@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:client:laptop:session"))

	require.NoError(t, revoke(ctx, b))
	assert.False(t, mr.Exists("test:client:laptop:session"))
}

func TestOpenBackendRedisUnreachable(t *testing.T) {
	withFlags(t)
	mr := miniredis.RunT(t)
	backendKind = backendRedis
	redisAddr = mr.Addr()
	clientID = "laptop"
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := openBackend(ctx, nil, nil)
	assert.ErrorContains(t, err, "connecting to redis")
}

func TestRevokeCommandRedisIgnoresLockedDataFile(t *testing.T) {
	withFlags(t)
	mr := miniredis.RunT(t)
	dataDir = t.TempDir()
	backendKind = backendRedis
	redisAddr = mr.Addr()
	redisPrefix = "test"
	clientID = "laptop"
	sessionTTL = time.Hour
	logLevel = "error"
	ctx := context.Background()

	// A running dashboard holds the data file open.
	held, err := bboltstorage.NewFromFile(filepath.Join(dataDir, dbFile), nil)
	require.NoError(t, err)
	defer held.Close()

	b, closeFn, err := openBackend(ctx, nil, nil)
	require.NoError(t, err)
	defer closeFn()
	_, err = b.(*redisbackend.Backend).SignUp(ctx, "founder@example.com", "correct-horse-battery")
	require.NoError(t, err)

	var out bytes.Buffer
	revokeCmd.SetOut(&out)
	revokeCmd.SetContext(ctx)
	t.Cleanup(func() { revokeCmd.SetOut(nil) })

	require.NoError(t, revokeCmd.RunE(revokeCmd, nil))
	assert.Contains(t, out.String(), "Session revoked.")
	assert.False(t, mr.Exists("test:client:laptop:session"))
}

func TestRevokeCommandLocalReportsLockedDataFile(t *testing.T) {
	withFlags(t)
	dataDir = t.TempDir()
	backendKind = backendLocal
	logLevel = "error"

	held, err := bboltstorage.NewFromFile(filepath.Join(dataDir, dbFile), nil)
	require.NoError(t, err)
	defer held.Close()

	revokeCmd.SetContext(context.Background())
	err = revokeCmd.RunE(revokeCmd, nil)
	assert.ErrorContains(t, err, "data file is in use")
}

func TestEffectiveAuthTimeout(t *testing.T) {
	withFlags(t)

	authTimeout = 0
	assert.Equal(t, session.DefaultTimeout, effectiveAuthTimeout())
	authTimeout = -time.Second
	assert.Equal(t, session.DefaultTimeout, effectiveAuthTimeout())
	authTimeout = 3 * time.Second
	assert.Equal(t, 3*time.Second, effectiveAuthTimeout())
}
