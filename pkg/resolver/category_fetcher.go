package resolver

import (
	"context"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/cache"
	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CategoryFetcher resolves category listings and the category index.
type CategoryFetcher struct {
	api      ProductAPI
	products *cache.ProductCache
	lists    *cache.Tier[[]catalog.Product]
	merged   *cache.Tier[[]catalog.Product]
	index    *cache.CategoryIndexCache
	ns       string
	config   Config
	logger   zerolog.Logger
}

// NewCategoryFetcher creates a new category fetcher.
// Listings share the namespace of products.
func NewCategoryFetcher(api ProductAPI, kv *cache.KV, products *cache.ProductCache, index *cache.CategoryIndexCache, config Config, logger zerolog.Logger) *CategoryFetcher {
	return &CategoryFetcher{
		api:      api,
		products: products,
		lists:    cache.NewTier[[]catalog.Product](kv, cache.KindCategory),
		merged:   cache.NewTier[[]catalog.Product](kv, cache.KindMultiCategory),
		index:    index,
		ns:       products.Namespace(),
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// FetchByCategory returns up to limit products of category.
//
// The cache key ignores limit: a cached listing is returned whatever limit it
// was fetched with. Every fetched product is also cached individually. Empty
// listings are not cached.
func (cf *CategoryFetcher) FetchByCategory(ctx context.Context, category string, limit int) []catalog.Product {
	start := time.Now()
	defer func() {
		resolverDuration.WithLabelValues("fetch_by_category").Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "resolver.FetchByCategory",
		trace.WithAttributes(attribute.String("resolver.category", category)))
	defer span.End()

	products, err := cf.fetchCategory(ctx, category, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "category fetch failed")
		return []catalog.Product{}
	}
	return products
}

// fetchCategory is FetchByCategory with the upstream error exposed.
func (cf *CategoryFetcher) fetchCategory(ctx context.Context, category string, limit int) ([]catalog.Product, error) {
	key := cache.CategoryKey(cf.ns, category)
	if products, ok := cf.lists.Get(ctx, key); ok {
		return products, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cf.config.Timeout)
	products, err := cf.api.GetCategory(fetchCtx, category, limit)
	cancel()

	if err != nil {
		resolverUpstreamFetches.WithLabelValues("fetch_by_category", "error").Inc()
		cf.logger.Warn().
			Err(err).
			Str("category", category).
			Msg("Category fetch failed")
		return nil, err
	}
	resolverUpstreamFetches.WithLabelValues("fetch_by_category", "ok").Inc()

	for _, p := range products {
		cf.products.Put(ctx, p)
	}

	if len(products) == 0 {
		cf.logger.Debug().Str("category", category).Msg("Empty category listing not cached")
		return []catalog.Product{}, nil
	}

	cf.lists.Put(ctx, key, products)
	return products, nil
}

// FetchByCategories returns the merged listings of categories.
//
// The result is cached under a key built from the sorted category names, so
// the order of categories does not matter. Listings are fetched in parallel
// and merged in sorted category order; a product listed under several
// categories appears once, taken from the first. A failing category
// contributes nothing. The merged list is cached only when every category
// resolved and the merge is non-empty.
func (cf *CategoryFetcher) FetchByCategories(ctx context.Context, categories []string, limitPerCategory int) []catalog.Product {
	if len(categories) == 0 {
		return []catalog.Product{}
	}

	start := time.Now()
	defer func() {
		resolverDuration.WithLabelValues("fetch_by_categories").Observe(time.Since(start).Seconds())
	}()

	key := cache.MultiCategoryKey(cf.ns, categories)
	ctx, span := tracer.Start(ctx, "resolver.FetchByCategories",
		trace.WithAttributes(attribute.String("resolver.key", key)))
	defer span.End()

	if products, ok := cf.merged.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("resolver.cache_hit", true))
		return products
	}

	sorted := uniqueSorted(categories)
	listings := make([][]catalog.Product, len(sorted))
	failed := make([]bool, len(sorted))

	var g errgroup.Group
	g.SetLimit(cf.config.MaxConcurrency)
	for i, category := range sorted {
		g.Go(func() error {
			products, err := cf.fetchCategory(ctx, category, limitPerCategory)
			if err != nil {
				failed[i] = true
				return nil
			}
			listings[i] = products
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeListings(listings)

	degraded := false
	for _, f := range failed {
		degraded = degraded || f
	}
	span.SetAttributes(
		attribute.Bool("resolver.cache_hit", false),
		attribute.Bool("resolver.degraded", degraded),
		attribute.Int("resolver.products", len(merged)),
	)

	switch {
	case degraded:
		cf.logger.Warn().
			Strs("categories", sorted).
			Int("products", len(merged)).
			Msg("Partial category merge not cached")
	case len(merged) == 0:
		cf.logger.Debug().Strs("categories", sorted).Msg("Empty category merge not cached")
	default:
		cf.merged.Put(ctx, key, merged)
	}

	return merged
}

// mergeListings flattens listings in order keeping the first occurrence of each id.
func mergeListings(listings [][]catalog.Product) []catalog.Product {
	seen := make(map[int]bool)
	merged := make([]catalog.Product, 0)
	for _, listing := range listings {
		for _, p := range listing {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}
	return merged
}

// uniqueSorted returns the sorted distinct category names.
func uniqueSorted(categories []string) []string {
	sorted := cache.SortedCategories(categories)
	out := sorted[:0]
	for i, c := range sorted {
		if i > 0 && c == sorted[i-1] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FetchAllCategories returns the category index, cached for seven days.
// An empty index is returned but not cached.
func (cf *CategoryFetcher) FetchAllCategories(ctx context.Context) []catalog.Category {
	ctx, span := tracer.Start(ctx, "resolver.FetchAllCategories")
	defer span.End()

	if categories, ok := cf.index.Get(ctx); ok {
		return categories
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cf.config.Timeout)
	categories, err := cf.api.GetCategories(fetchCtx)
	cancel()

	if err != nil {
		resolverUpstreamFetches.WithLabelValues("fetch_all_categories", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "category index fetch failed")
		cf.logger.Warn().Err(err).Msg("Category index fetch failed")
		return []catalog.Category{}
	}
	resolverUpstreamFetches.WithLabelValues("fetch_all_categories", "ok").Inc()

	cf.index.Put(ctx, categories)
	if categories == nil {
		categories = []catalog.Category{}
	}
	return categories
}
