package resolver

import (
	"context"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// ProductAPI is the upstream the resolvers fall back to on a cache miss.
// client.Client implements it.
type ProductAPI interface {
	GetProduct(ctx context.Context, id int) (catalog.Product, error)
	GetCategory(ctx context.Context, category string, limit int) ([]catalog.Product, error)
	GetCategories(ctx context.Context) ([]catalog.Category, error)
}

// Config holds resolver configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel upstream requests per call.
	MaxConcurrency int

	// Timeout per upstream request.
	Timeout time.Duration
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

var tracer = otel.Tracer("github.com/Sternrassler/novamart-client/pkg/resolver")

// Prometheus metrics for resolver operations.
var (
	resolverUpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_resolver_upstream_fetches_total",
		Help: "Upstream fetches issued by the resolvers by operation and result",
	}, []string{"operation", "result"})

	resolverDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_resolver_duration_seconds",
		Help:    "Resolver call duration in seconds by operation",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"operation"})
)
