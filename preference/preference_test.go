package preference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/incorpdash/storage"
	"github.com/jmcleod/incorpdash/storage/memory"
)

type recordingApplier struct {
	calls []bool
}

func (r *recordingApplier) ApplyTheme(dark bool) { r.calls = append(r.calls, dark) }

// writeLog wraps a KV and records every Put to the dark-mode key.
type writeLog struct {
	storage.KV
	writes []string
	putErr error
}

func (w *writeLog) Put(bucket, key string, value []byte) error {
	if w.putErr != nil {
		return w.putErr
	}
	w.writes = append(w.writes, string(value))
	return w.KV.Put(bucket, key, value)
}

func TestFreshStartDefaultsToDark(t *testing.T) {
	a := &recordingApplier{}
	s := New(memory.New(), a, nil)
	s.Load()

	assert.True(t, s.DarkMode())
	assert.Equal(t, []bool{true}, a.calls)
}

func TestLoadDefaultThenOverride(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Put(Bucket, DarkModeKey, []byte("false")))
	a := &recordingApplier{}
	s := New(kv, a, nil)
	s.Load()

	assert.False(t, s.DarkMode())
	assert.Equal(t, []bool{true, false}, a.calls, "dark must be applied before the light override")
}

func TestLoadPersistedDark(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Put(Bucket, DarkModeKey, []byte("true")))
	a := &recordingApplier{}
	s := New(kv, a, nil)
	s.Load()

	assert.True(t, s.DarkMode())
	assert.Equal(t, []bool{true}, a.calls)
}

func TestLoadCorruptValueFailsSafeToDark(t *testing.T) {
	for _, raw := range []string{"", "not-json", `"false"`, "0", "null"} {
		kv := memory.New()
		require.NoError(t, kv.Put(Bucket, DarkModeKey, []byte(raw)))
		s := New(kv, nil, nil)
		s.Load()
		assert.True(t, s.DarkMode(), "value %q", raw)
	}
}

func TestToggleRoundTrip(t *testing.T) {
	kv := &writeLog{KV: memory.New()}
	a := &recordingApplier{}
	s := New(kv, a, nil)
	s.Load()
	original := s.DarkMode()

	assert.Equal(t, !original, s.ToggleDarkMode())
	assert.Equal(t, original, s.ToggleDarkMode())

	assert.Equal(t, original, s.DarkMode())
	assert.Equal(t, []string{"false", "true"}, kv.writes)
	assert.Equal(t, []bool{true, false, true}, a.calls)
}

func TestTogglePersistsAcrossReload(t *testing.T) {
	kv := memory.New()
	s := New(kv, nil, nil)
	s.Load()
	s.ToggleDarkMode()

	reloaded := New(kv, nil, nil)
	reloaded.Load()
	assert.False(t, reloaded.DarkMode())
}

func TestToggleWriteFailureKeepsInMemoryValue(t *testing.T) {
	kv := &writeLog{KV: memory.New(), putErr: errors.New("disk full")}
	s := New(kv, nil, nil)
	s.Load()

	assert.False(t, s.ToggleDarkMode())
	assert.False(t, s.DarkMode())
}
