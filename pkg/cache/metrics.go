package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits by tier
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of storefront cache hits",
		},
		[]string{"tier"}, // "product", "category", "multi_category", "category_index"
	)

	// CacheMisses tracks absent, expired and corrupt reads by tier
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of storefront cache misses",
		},
		[]string{"tier"},
	)

	// CacheEvictions tracks lazy evictions triggered by reads
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_evictions_total",
			Help: "Total number of cache entries evicted on read",
		},
		[]string{"reason"}, // "expired", "corrupt"
	)

	// CacheErrors tracks storage and serialization errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "read", "write", "remove", "keys"
	)

	// CacheWrittenBytes tracks bytes written to the store
	CacheWrittenBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cache_written_bytes_total",
			Help: "Total bytes written to the storefront cache",
		},
	)
)
