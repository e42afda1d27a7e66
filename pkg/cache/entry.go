package cache

import (
	"encoding/json"
	"time"
)

// Kind identifies a cache tier. Each kind has a fixed TTL.
type Kind string

const (
	KindProduct       Kind = "product"
	KindCategory      Kind = "category"
	KindMultiCategory Kind = "multi_category"
	KindCategoryIndex Kind = "category_index"
	KindBatch         Kind = "batch"
)

const (
	// ProductTTL applies to single products, category lists and merged lists.
	ProductTTL = 24 * time.Hour

	// CategoryIndexTTL applies to the list of available categories.
	CategoryIndexTTL = 7 * 24 * time.Hour
)

// TTL returns the time-to-live for kind.
func TTL(kind Kind) time.Duration {
	if kind == KindCategoryIndex {
		return CategoryIndexTTL
	}
	return ProductTTL
}

// Entry is the stored form of every cached value.
type Entry struct {
	// Payload is the cached value as JSON
	Payload json.RawMessage `json:"payload"`

	// Timestamp is the write time in epoch milliseconds
	Timestamp int64 `json:"timestamp"`
}

// IsExpired reports whether the entry is stale at now.
// An entry is valid iff now - timestamp < ttl.
func (e *Entry) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.Timestamp >= ttl.Milliseconds()
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	age := time.Duration(now.UnixMilli()-e.Timestamp) * time.Millisecond
	if age < 0 {
		return 0
	}
	return age
}
