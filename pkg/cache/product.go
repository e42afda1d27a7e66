package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
)

// ProductCache stores individual products keyed by id.
type ProductCache struct {
	tier *Tier[catalog.Product]
	kv   *KV
	ns   string
}

// NewProductCache creates a ProductCache under namespace ns.
func NewProductCache(kv *KV, ns string) *ProductCache {
	if ns == "" {
		ns = DefaultNamespace
	}
	return &ProductCache{
		tier: NewTier[catalog.Product](kv, KindProduct),
		kv:   kv,
		ns:   ns,
	}
}

// Namespace returns the key namespace.
func (c *ProductCache) Namespace() string {
	return c.ns
}

// Get returns the cached product with id if it is fresh.
func (c *ProductCache) Get(ctx context.Context, id int) (catalog.Product, bool) {
	return c.tier.Get(ctx, ProductKey(c.ns, id))
}

// Put stores the normalized product. Products without an id are ignored.
func (c *ProductCache) Put(ctx context.Context, p catalog.Product) {
	if p.ID == 0 {
		return
	}
	c.tier.Put(ctx, ProductKey(c.ns, p.ID), p.Normalize())
}

// IDs returns the ids of every stored product entry, fresh or not, in ascending order.
func (c *ProductCache) IDs(ctx context.Context) []int {
	prefix := ProductPrefix(c.ns)
	keys := c.kv.KeysWithPrefix(ctx, prefix)

	ids := make([]int, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// All returns every fresh cached product in ascending id order.
// Reading expired entries evicts them.
func (c *ProductCache) All(ctx context.Context) []catalog.Product {
	ids := c.IDs(ctx)
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.Get(ctx, id); ok {
			products = append(products, p)
		}
	}
	return products
}

// Clear removes all product entries and last-batch records.
func (c *ProductCache) Clear(ctx context.Context) int {
	removed := c.kv.RemoveByPrefix(ctx, ProductPrefix(c.ns))
	removed += c.kv.RemoveByPrefix(ctx, BatchPrefix(c.ns))
	return removed
}

// Export writes every fresh cached product to w as indented JSON.
func (c *ProductCache) Export(ctx context.Context, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.All(ctx)); err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	return nil
}
