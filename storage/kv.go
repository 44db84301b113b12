// Package storage provides the durable key-value abstraction used for
// preferences, persisted credentials, and local user records.
package storage

import "errors"

// ErrNotFound is returned when a key does not exist in a bucket.
var ErrNotFound = errors.New("record not found")

// KV defines the interface for durable bucketed key-value storage.
// Values are opaque serialized bytes; callers own the encoding.
type KV interface {
	Get(bucket string, key string) ([]byte, error)
	Put(bucket string, key string, value []byte) error
	Delete(bucket string, key string) error
	List(bucket string) ([]string, error)
}
