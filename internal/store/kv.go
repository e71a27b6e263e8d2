package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by KV.Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KV is a flat byte store. Keys are namespaced by prefix ("job:", "run:", ...).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan calls fn for every key starting with prefix, in key order.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	// DeletePrefix removes every key starting with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}
