// Package preference holds the dashboard's persisted dark-mode preference.
package preference

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/jmcleod/incorpdash/storage"
)

const (
	// Bucket is the storage bucket holding UI preferences.
	Bucket = "preferences"
	// DarkModeKey is the fixed storage name of the dark-mode flag.
	DarkModeKey = "darkMode"
)

// Applier receives the global presentation flag whenever it changes.
type Applier interface {
	ApplyTheme(dark bool)
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(dark bool)

func (f ApplierFunc) ApplyTheme(dark bool) { f(dark) }

// Store holds the dark-mode preference. It starts dark until Load says
// otherwise.
type Store struct {
	kv      storage.KV
	applier Applier
	logger  *slog.Logger

	mu   sync.RWMutex
	dark bool
}

// New creates a Store over kv. applier may be nil.
func New(kv storage.KV, applier Applier, logger *slog.Logger) *Store {
	if applier == nil {
		applier = ApplierFunc(func(bool) {})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:      kv,
		applier: applier,
		logger:  logger.With("component", "preference"),
		dark:    true,
	}
}

// Load rehydrates the preference from storage. The applier is first forced
// to dark, then switched to light only when the persisted value decodes to
// an explicit false. Missing or corrupt values stay dark.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dark = true
	s.applier.ApplyTheme(true)

	data, err := s.kv.Get(Bucket, DarkModeKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("loading dark mode preference", "error", err)
		}
		return
	}
	var persisted *bool
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("ignoring corrupt dark mode preference", "error", err)
		return
	}
	if persisted != nil && !*persisted {
		s.dark = false
		s.applier.ApplyTheme(false)
	}
}

// DarkMode reports the current preference.
func (s *Store) DarkMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dark
}

// ToggleDarkMode flips the preference, signals the applier and persists the
// new value. The in-memory flag is updated first; a failed write is logged
// and not rolled back.
func (s *Store) ToggleDarkMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dark = !s.dark
	s.applier.ApplyTheme(s.dark)

	data, _ := json.Marshal(s.dark)
	if err := s.kv.Put(Bucket, DarkModeKey, data); err != nil {
		s.logger.Error("persisting dark mode preference", "error", err, "dark", s.dark)
	}
	return s.dark
}
