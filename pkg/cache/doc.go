// Package cache provides the catalog cache tiers on top of a storage.Store.
//
// The cache layer implements the storefront caching policy with the following features:
//
// - Timestamped entries with a fixed TTL per cache kind
// - Lazy eviction: an expired or corrupt entry is deleted when it is read
// - Deterministic, pure key construction per kind
// - Write failures are logged and swallowed so a fetch path never aborts on them
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store := storage.NewMemoryStore(storage.DefaultQuotaBytes)
//	kv := cache.NewKV(store, clock.Real{}, logger)
//
//	products := cache.NewProductCache(kv, "novaMart")
//	products.Put(ctx, product)
//
//	if p, ok := products.Get(ctx, 42); ok {
//		// fresh cache hit
//	}
//
// # Inspecting failures
//
// Read collapses every failure to "absent". Lookup exposes why:
//
//	payload, err := kv.Lookup(ctx, key, cache.TTL(cache.KindProduct))
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//	case errors.Is(err, cache.ErrExpired):
//	case errors.Is(err, cache.ErrInvalidEntry):
//	}
//
// # Metrics
//
//   - storefront_cache_hits_total{tier} - Cache hits
//   - storefront_cache_misses_total{tier} - Cache misses (absent, expired, corrupt)
//   - storefront_cache_evictions_total{reason} - Lazy evictions (expired, corrupt)
//   - storefront_cache_errors_total{operation} - Storage and serialization errors
//   - storefront_cache_written_bytes_total - Bytes written to the store
package cache
