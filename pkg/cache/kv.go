package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrExpired indicates the entry was older than its TTL and has been evicted
	ErrExpired = errors.New("cache entry expired")

	// ErrInvalidEntry indicates the cache entry is corrupt and has been evicted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// KV stores timestamped JSON entries in a storage.Store.
// Writes never fail the caller; reads treat every failure as absent.
type KV struct {
	store  storage.Store
	clock  clock.Clock
	logger zerolog.Logger
}

// NewKV creates a KV over store.
func NewKV(store storage.Store, clk clock.Clock, logger zerolog.Logger) *KV {
	if store == nil {
		panic("store cannot be nil")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &KV{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Write stores payload under key with the current timestamp.
// Serialization and storage errors (including quota exhaustion) are logged and dropped.
func (c *KV) Write(ctx context.Context, key string, payload any) {
	if err := c.write(ctx, key, payload); err != nil {
		CacheErrors.WithLabelValues("write").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

func (c *KV) write(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	data, err := json.Marshal(Entry{
		Payload:   raw,
		Timestamp: clock.Millis(c.clock.Now()),
	})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("store set: %w", err)
	}

	CacheWrittenBytes.Add(float64(len(data)))
	return nil
}

// Lookup returns the payload stored under key if it is younger than ttl.
//
// Errors:
//   - ErrCacheMiss: no entry
//   - ErrExpired: entry too old; the key has been deleted
//   - ErrInvalidEntry: entry not decodable; the key has been deleted
//   - any other error: the store failed
func (c *KV) Lookup(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, error) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("read").Inc()
		return nil, fmt.Errorf("store get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Payload == nil {
		c.evict(ctx, key, "corrupt")
		if err == nil {
			err = errors.New("missing payload")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired(c.clock.Now(), ttl) {
		c.evict(ctx, key, "expired")
		return nil, ErrExpired
	}

	return entry.Payload, nil
}

// Read decodes the fresh payload under key into dst.
// It returns false when the entry is absent, expired, corrupt or not decodable into dst.
func (c *KV) Read(ctx context.Context, key string, ttl time.Duration, dst any) bool {
	payload, err := c.Lookup(ctx, key, ttl)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrExpired) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		CacheErrors.WithLabelValues("read").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache payload has unexpected shape")
		return false
	}
	return true
}

// Remove deletes key.
func (c *KV) Remove(ctx context.Context, key string) {
	if err := c.store.Remove(ctx, key); err != nil {
		CacheErrors.WithLabelValues("remove").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache remove failed")
	}
}

// RemoveByPrefix deletes every key starting with prefix and returns how many were removed.
func (c *KV) RemoveByPrefix(ctx context.Context, prefix string) int {
	removed := 0
	for _, key := range c.KeysWithPrefix(ctx, prefix) {
		if err := c.store.Remove(ctx, key); err != nil {
			CacheErrors.WithLabelValues("remove").Inc()
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache remove failed")
			continue
		}
		removed++
	}

	c.logger.Debug().
		Str("prefix", prefix).
		Int("removed", removed).
		Msg("Removed cache keys by prefix")

	return removed
}

// KeysWithPrefix lists keys starting with prefix. Storage errors yield an empty list.
func (c *KV) KeysWithPrefix(ctx context.Context, prefix string) []string {
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		c.logger.Warn().Err(err).Str("prefix", prefix).Msg("Cache key listing failed")
		return nil
	}
	return keys
}

// SizeWithPrefix returns the number of stored bytes under keys starting with prefix.
func (c *KV) SizeWithPrefix(ctx context.Context, prefix string) int {
	size := 0
	for _, key := range c.KeysWithPrefix(ctx, prefix) {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}
		size += len(key) + len(data)
	}
	return size
}

func (c *KV) evict(ctx context.Context, key, reason string) {
	CacheEvictions.WithLabelValues(reason).Inc()
	c.logger.Debug().Str("key", key).Str("reason", reason).Msg("Evicting cache entry")
	c.Remove(ctx, key)
}
