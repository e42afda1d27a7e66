package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/cache"
	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// errEmptyProduct marks a 2xx response that carried no product id.
var errEmptyProduct = errors.New("upstream returned a product without id")

// BatchRecord is the diagnostic "last requested batch" entry.
type BatchRecord struct {
	IDs         []int `json:"ids"`
	RequestedAt int64 `json:"requestedAt"`
}

// fetchResult represents the result of fetching a single product
type fetchResult struct {
	ID      int
	Product catalog.Product
	Error   error
}

// BatchFetcher resolves product ids from the cache and the Product API.
type BatchFetcher struct {
	api      ProductAPI
	products *cache.ProductCache
	kv       *cache.KV
	clock    clock.Clock
	config   Config
	logger   zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(api ProductAPI, products *cache.ProductCache, kv *cache.KV, clk clock.Clock, config Config, logger zerolog.Logger) *BatchFetcher {
	if clk == nil {
		clk = clock.Real{}
	}
	return &BatchFetcher{
		api:      api,
		products: products,
		kv:       kv,
		clock:    clk,
		config:   config.withDefaults(),
		logger:   logger,
	}
}

// FetchByIDs returns the products for ids in input order.
//
// Fresh cache entries are used as-is; when every id is cached no upstream
// request is made. Each distinct missing id is fetched once, in parallel, and
// written to the cache as soon as it arrives. Ids that fail to resolve are
// omitted. Repeated ids yield repeated products.
func (bf *BatchFetcher) FetchByIDs(ctx context.Context, ids []int) []catalog.Product {
	if len(ids) == 0 {
		return []catalog.Product{}
	}

	start := time.Now()
	defer func() {
		resolverDuration.WithLabelValues("fetch_by_ids").Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "resolver.FetchByIDs",
		trace.WithAttributes(attribute.Int("resolver.ids", len(ids))))
	defer span.End()

	hits := make(map[int]catalog.Product, len(ids))
	var missing []int
	queued := make(map[int]bool)
	for _, id := range ids {
		if _, ok := hits[id]; ok || queued[id] {
			continue
		}
		if p, ok := bf.products.Get(ctx, id); ok {
			hits[id] = p
			continue
		}
		queued[id] = true
		missing = append(missing, id)
	}

	bf.recordBatch(ctx, ids)

	span.SetAttributes(
		attribute.Int("resolver.cache_hits", len(hits)),
		attribute.Int("resolver.cache_misses", len(missing)),
	)

	if len(missing) == 0 {
		bf.logger.Debug().
			Int("ids", len(ids)).
			Msg("All products served from cache")
		return assemble(ids, hits, nil)
	}

	fetched := bf.fetchMissing(ctx, missing)
	span.SetAttributes(
		attribute.Int("resolver.fetched", len(fetched)),
		attribute.Int("resolver.failed", len(missing)-len(fetched)),
	)

	bf.logger.Debug().
		Int("ids", len(ids)).
		Int("cache_hits", len(hits)).
		Int("fetched", len(fetched)).
		Int("failed", len(missing)-len(fetched)).
		Dur("duration", time.Since(start)).
		Msg("Batch resolved")

	return assemble(ids, hits, fetched)
}

// assemble emits, for each id in order, the cached or fetched product.
func assemble(ids []int, hits, fetched map[int]catalog.Product) []catalog.Product {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := hits[id]; ok {
			out = append(out, p)
			continue
		}
		if p, ok := fetched[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (bf *BatchFetcher) recordBatch(ctx context.Context, ids []int) {
	record := BatchRecord{
		IDs:         append([]int(nil), ids...),
		RequestedAt: clock.Millis(bf.clock.Now()),
	}
	bf.kv.Write(ctx, cache.BatchKey(bf.products.Namespace()), record)
}

// fetchMissing fetches ids in parallel using a worker pool.
// Returns map of id -> product for successful fetches.
func (bf *BatchFetcher) fetchMissing(ctx context.Context, ids []int) map[int]catalog.Product {
	workers := bf.config.MaxConcurrency
	if workers > len(ids) {
		workers = len(ids)
	}

	idQueue := make(chan int, len(ids))
	for _, id := range ids {
		idQueue <- id
	}
	close(idQueue)

	results := make(chan fetchResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, idQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := make(map[int]catalog.Product, len(ids))
	for result := range results {
		if result.Error != nil {
			resolverUpstreamFetches.WithLabelValues("fetch_by_ids", "error").Inc()
			bf.logger.Warn().
				Err(result.Error).
				Int("product_id", result.ID).
				Msg("Product fetch failed")
			continue
		}
		resolverUpstreamFetches.WithLabelValues("fetch_by_ids", "ok").Inc()
		fetched[result.ID] = result.Product
	}

	return fetched
}

// worker processes ids from the queue
func (bf *BatchFetcher) worker(ctx context.Context, idQueue <-chan int, results chan<- fetchResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range idQueue {
		select {
		case <-ctx.Done():
			bf.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		fetchCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		p, err := bf.api.GetProduct(fetchCtx, id)
		cancel()

		if err == nil && p.ID == 0 {
			err = errEmptyProduct
		}
		if err == nil {
			bf.products.Put(ctx, p)
		}

		results <- fetchResult{ID: id, Product: p.Normalize(), Error: err}
		processed++
	}
}
