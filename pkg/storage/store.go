// Package storage provides the key-value stores that back the catalog caches.
//
// A Store behaves like browser local storage: string keys, opaque byte values,
// bounded capacity and no built-in expiry. Expiry is handled one layer up by
// the cache package, which evicts entries lazily when they are read.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the key does not exist in the store.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded indicates a write was rejected because the store is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store is a string-keyed byte store.
// Concurrent writers to the same key are last-write-wins.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix. An empty prefix matches every key.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
