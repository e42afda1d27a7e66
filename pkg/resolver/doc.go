// Package resolver answers product and category requests from the cache tiers,
// going to the Product API only for what the cache cannot serve.
//
// BatchFetcher resolves a list of product ids. Cached ids are served locally;
// the gap is fetched by a worker pool, one request per missing id, each with
// its own timeout. The output follows the input order and silently omits ids
// that could not be resolved.
//
// CategoryFetcher resolves single categories, merged multi-category lists and
// the category index. Multi-category requests fan out in parallel and merge in
// sorted category order, keeping the first occurrence of each product id.
//
// Example usage:
//
//	cfg := resolver.DefaultConfig()
//	batch := resolver.NewBatchFetcher(apiClient, products, kv, clk, cfg, logger)
//	items := batch.FetchByIDs(ctx, []int{3, 1, 2})
//
// No method returns an error. Failures are logged and degrade to partial or
// empty results.
package resolver
