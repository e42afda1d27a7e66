package cache

import (
	"context"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
)

// CategoryIndexCache stores the list of available categories with the long TTL.
type CategoryIndexCache struct {
	tier *Tier[[]catalog.Category]
	key  string
}

// NewCategoryIndexCache creates a CategoryIndexCache under namespace ns.
func NewCategoryIndexCache(kv *KV, ns string) *CategoryIndexCache {
	if ns == "" {
		ns = DefaultNamespace
	}
	return &CategoryIndexCache{
		tier: NewTier[[]catalog.Category](kv, KindCategoryIndex),
		key:  CategoryIndexKey(ns),
	}
}

// Get returns the cached index if it is fresh and non-empty.
func (c *CategoryIndexCache) Get(ctx context.Context) ([]catalog.Category, bool) {
	categories, ok := c.tier.Get(ctx, c.key)
	if !ok || len(categories) == 0 {
		return nil, false
	}
	return categories, true
}

// Put stores categories. An empty index is not stored so the next call retries upstream.
func (c *CategoryIndexCache) Put(ctx context.Context, categories []catalog.Category) {
	if len(categories) == 0 {
		return
	}
	c.tier.Put(ctx, c.key, categories)
}
