// Package storefront wires the caches, resolvers and cart into one Catalog.
//
// A Catalog is built once at application start and passed to whatever serves
// the UI. Separate Catalogs share nothing except the Store they are given.
package storefront

import (
	"context"
	"fmt"
	"io"

	"github.com/Sternrassler/novamart-client/pkg/cache"
	"github.com/Sternrassler/novamart-client/pkg/cart"
	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/Sternrassler/novamart-client/pkg/client"
	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/ratelimit"
	"github.com/Sternrassler/novamart-client/pkg/resolver"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/rs/zerolog"
)

// Options configures a Catalog.
type Options struct {
	// Namespace prefixes every storage key. Defaults to cache.DefaultNamespace.
	Namespace string

	// Store backs every cache tier. Defaults to a MemoryStore with the default quota.
	Store storage.Store

	// Clock drives TTL decisions. Defaults to clock.Real.
	Clock clock.Clock

	// API overrides the Product API. When nil a client.Client is built from Client.
	API resolver.ProductAPI

	// Client configures the built-in Product API client.
	Client client.Config

	// RateLimit gates the built-in client on the upstream rate limit headers.
	RateLimit bool

	Resolver resolver.Config

	Logger zerolog.Logger
}

// Catalog is the storefront's data layer: product and category resolution
// through the cache, plus the session cart.
type Catalog struct {
	ns         string
	kv         *cache.KV
	products   *cache.ProductCache
	batch      *resolver.BatchFetcher
	categories *resolver.CategoryFetcher
	cart       *cart.Store
	logger     zerolog.Logger
}

// New builds a Catalog.
func New(opts Options) (*Catalog, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = cache.DefaultNamespace
	}
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryStore(storage.DefaultQuotaBytes)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := opts.Logger

	api := opts.API
	if api == nil {
		cfg := opts.Client
		cfg.Logger = logger
		if opts.RateLimit {
			cfg.RateLimiter = ratelimit.NewTracker(store, ns, clk,
				logger.With().Str("component", "ratelimit").Logger())
		}
		c, err := client.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("create product API client: %w", err)
		}
		api = c
	}

	kv := cache.NewKV(store, clk, logger.With().Str("component", "cache").Logger())
	products := cache.NewProductCache(kv, ns)
	index := cache.NewCategoryIndexCache(kv, ns)
	resolverLogger := logger.With().Str("component", "resolver").Logger()

	return &Catalog{
		ns:         ns,
		kv:         kv,
		products:   products,
		batch:      resolver.NewBatchFetcher(api, products, kv, clk, opts.Resolver, resolverLogger),
		categories: resolver.NewCategoryFetcher(api, kv, products, index, opts.Resolver, resolverLogger),
		cart:       cart.New(logger.With().Str("component", "cart").Logger()),
		logger:     logger,
	}, nil
}

// Namespace returns the storage key namespace.
func (c *Catalog) Namespace() string {
	return c.ns
}

// FetchByIDs returns the products for ids in input order, omitting unresolvable ids.
func (c *Catalog) FetchByIDs(ctx context.Context, ids []int) []catalog.Product {
	return c.batch.FetchByIDs(ctx, ids)
}

// FetchByCategory returns up to limit products of category.
func (c *Catalog) FetchByCategory(ctx context.Context, category string, limit int) []catalog.Product {
	return c.categories.FetchByCategory(ctx, category, limit)
}

// FetchByCategories returns the deduplicated products of several categories.
func (c *Catalog) FetchByCategories(ctx context.Context, categories []string, limitPerCategory int) []catalog.Product {
	return c.categories.FetchByCategories(ctx, categories, limitPerCategory)
}

// FetchAllCategories returns the category index.
func (c *Catalog) FetchAllCategories(ctx context.Context) []catalog.Category {
	return c.categories.FetchAllCategories(ctx)
}

// Cart returns the session cart.
func (c *Catalog) Cart() *cart.Store {
	return c.cart
}

// CacheStats reports the product tier's size.
func (c *Catalog) CacheStats(ctx context.Context) cache.Stats {
	return c.products.Stats(ctx)
}

// HealthCheck inspects the cached products.
func (c *Catalog) HealthCheck(ctx context.Context) cache.Health {
	return c.products.HealthCheck(ctx)
}

// ExportCache writes the fresh cached products to w as JSON.
func (c *Catalog) ExportCache(ctx context.Context, w io.Writer) error {
	return c.products.Export(ctx, w)
}

// ClearCache removes every cache entry of the namespace and returns how many
// keys were deleted. The rate limit state is kept.
func (c *Catalog) ClearCache(ctx context.Context) int {
	removed := c.products.Clear(ctx)
	removed += c.kv.RemoveByPrefix(ctx, cache.CategoryPrefix(c.ns))
	removed += c.kv.RemoveByPrefix(ctx, cache.MultiCategoryPrefix(c.ns))
	removed += c.kv.RemoveByPrefix(ctx, cache.CategoryIndexKey(c.ns))

	c.logger.Info().
		Str("namespace", c.ns).
		Int("removed", removed).
		Msg("Cache cleared")

	return removed
}
