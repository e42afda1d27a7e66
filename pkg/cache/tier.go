package cache

import (
	"context"
)

// Tier is a typed view over KV for one cache kind.
type Tier[T any] struct {
	kv   *KV
	kind Kind
}

// NewTier creates a Tier for kind.
func NewTier[T any](kv *KV, kind Kind) *Tier[T] {
	return &Tier[T]{kv: kv, kind: kind}
}

// Get returns the fresh value stored under key.
func (t *Tier[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	if !t.kv.Read(ctx, key, TTL(t.kind), &value) {
		CacheMisses.WithLabelValues(string(t.kind)).Inc()
		t.kv.logger.Debug().Str("tier", string(t.kind)).Str("key", key).Msg("Cache miss")
		var zero T
		return zero, false
	}

	CacheHits.WithLabelValues(string(t.kind)).Inc()
	t.kv.logger.Debug().Str("tier", string(t.kind)).Str("key", key).Msg("Cache hit")
	return value, true
}

// Put stores value under key, refreshing its timestamp.
func (t *Tier[T]) Put(ctx context.Context, key string, value T) {
	t.kv.Write(ctx, key, value)
}

// Kind returns the tier's cache kind.
func (t *Tier[T]) Kind() Kind {
	return t.kind
}
