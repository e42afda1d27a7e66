package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/cache"
	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/rs/zerolog"
)

var errUpstream = errors.New("upstream failure")

// fakeAPI is an in-memory ProductAPI with call counting and failure injection.
type fakeAPI struct {
	mu            sync.Mutex
	products      map[int]catalog.Product
	categories    map[string][]catalog.Product
	index         []catalog.Category
	failIDs       map[int]bool
	failCats      map[string]bool
	failIndex     bool
	delays        map[int]time.Duration
	productCalls  map[int]int
	categoryCalls atomic.Int32
	indexCalls    atomic.Int32
	completed     []int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		products:     make(map[int]catalog.Product),
		categories:   make(map[string][]catalog.Product),
		failIDs:      make(map[int]bool),
		failCats:     make(map[string]bool),
		delays:       make(map[int]time.Duration),
		productCalls: make(map[int]int),
	}
}

func (f *fakeAPI) addProducts(products ...catalog.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range products {
		f.products[p.ID] = p
		if p.Category != "" {
			f.categories[p.Category] = append(f.categories[p.Category], p)
		}
	}
}

func (f *fakeAPI) GetProduct(ctx context.Context, id int) (catalog.Product, error) {
	f.mu.Lock()
	f.productCalls[id]++
	delay := f.delays[id]
	fail := f.failIDs[id]
	p, ok := f.products[id]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return catalog.Product{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.completed = append(f.completed, id)
	f.mu.Unlock()

	if fail || !ok {
		return catalog.Product{}, errUpstream
	}
	return p, nil
}

func (f *fakeAPI) GetCategory(ctx context.Context, category string, limit int) ([]catalog.Product, error) {
	f.categoryCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCats[category] {
		return nil, errUpstream
	}
	products := append([]catalog.Product(nil), f.categories[category]...)
	if limit > 0 && limit < len(products) {
		products = products[:limit]
	}
	return products, nil
}

func (f *fakeAPI) GetCategories(ctx context.Context) ([]catalog.Category, error) {
	f.indexCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failIndex {
		return nil, errUpstream
	}
	return append([]catalog.Category(nil), f.index...), nil
}

func (f *fakeAPI) totalProductCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.productCalls {
		total += n
	}
	return total
}

func (f *fakeAPI) callsFor(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productCalls[id]
}

func product(id int, category string) catalog.Product {
	return catalog.Product{
		ID:       id,
		Title:    "Product " + category,
		Category: category,
		Price:    float64(id),
		Images:   []string{},
	}
}

// harness wires the resolvers over a memory store and a fake clock.
type harness struct {
	api        *fakeAPI
	store      *storage.MemoryStore
	clock      *clock.Fake
	kv         *cache.KV
	products   *cache.ProductCache
	batch      *BatchFetcher
	categories *CategoryFetcher
}

func newHarness() *harness {
	return newHarnessWithStore(storage.NewMemoryStore(0))
}

func newHarnessWithStore(store *storage.MemoryStore) *harness {
	api := newFakeAPI()
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	kv := cache.NewKV(store, clk, zerolog.Nop())
	products := cache.NewProductCache(kv, "test")
	index := cache.NewCategoryIndexCache(kv, "test")
	cfg := Config{MaxConcurrency: 4, Timeout: time.Second}

	return &harness{
		api:        api,
		store:      store,
		clock:      clk,
		kv:         kv,
		products:   products,
		batch:      NewBatchFetcher(api, products, kv, clk, cfg, zerolog.Nop()),
		categories: NewCategoryFetcher(api, kv, products, index, cfg, zerolog.Nop()),
	}
}

func ids(products []catalog.Product) []int {
	out := make([]int, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}
