// Package memory provides a thread-safe in-memory implementation of storage.KV.
package memory

import (
	"sync"

	"github.com/jmcleod/incorpdash/storage"
)

// Store is a thread-safe in-memory implementation of storage.KV.
// Suitable for testing, demos, and ephemeral dashboards.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.KV = (*Store)(nil)

// New creates a new empty in-memory Store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(bucket, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[bucket]; !ok {
		s.data[bucket] = make(map[string][]byte)
	}
	s.data[bucket][key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Get(bucket, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[bucket][key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Delete(bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[bucket][key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data[bucket], key)
	return nil
}

func (s *Store) List(bucket string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data[bucket] {
		keys = append(keys, k)
	}
	return keys, nil
}
