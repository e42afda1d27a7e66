// Package metrics exposes the Prometheus registry used by the storefront client.
// All metrics are defined in their respective packages (cache, client, ratelimit,
// resolver) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the storefront client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry read by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - storefront_cache_hits_total{tier} (Counter): Fresh reads by tier (product, category, multi_category, category_index)
//   - storefront_cache_misses_total{tier} (Counter): Absent, expired or corrupt reads by tier
//   - storefront_cache_evictions_total{reason} (Counter): Lazy evictions (expired, corrupt)
//   - storefront_cache_errors_total{operation} (Counter): Storage and serialization errors
//   - storefront_cache_written_bytes_total (Counter): Bytes written to the store
//
// Resolver Metrics (pkg/resolver):
//   - storefront_resolver_upstream_fetches_total{operation, result} (Counter): Upstream fetches issued on cache misses
//   - storefront_resolver_duration_seconds{operation} (Histogram): Resolver call duration
//
// Rate Limit Metrics (pkg/ratelimit):
//   - storefront_api_requests_remaining (Gauge): Requests remaining in the upstream window
//   - storefront_api_rate_limit_blocks_total (Counter): Requests blocked below the critical threshold
//   - storefront_api_rate_limit_throttles_total (Counter): Requests delayed in the warning band
//
// Request Metrics (pkg/client):
//   - storefront_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - storefront_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - storefront_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - storefront_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - storefront_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - storefront_api_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Product cache hit rate
//   sum(rate(storefront_cache_hits_total{tier="product"}[5m])) /
//   (sum(rate(storefront_cache_hits_total{tier="product"}[5m])) + sum(rate(storefront_cache_misses_total{tier="product"}[5m])))
//
//   # Upstream failures omitted from results
//   rate(storefront_resolver_upstream_fetches_total{result="error"}[5m])
//
//   # Rate limit status
//   storefront_api_requests_remaining < 20
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(storefront_api_request_duration_seconds_bucket[5m]))
