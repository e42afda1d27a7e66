// Package testutil provides testing utilities for the storefront client.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock Product API server for testing.
// It serves /products/{id}, /products/category/{name} and /products/categories
// from an in-memory catalog.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	products map[int]catalog.Product
	index    string
	delays   map[string]time.Duration
	remain   string
	reset    string

	// Tracking
	RequestCount      int
	PathCounts        map[string]int
	LastRequestHeader http.Header
}

// NewMockAPI creates a new mock Product API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		products:   make(map[int]catalog.Product),
		delays:     make(map[string]time.Duration),
		PathCounts: make(map[string]int),
		remain:     "100",
		reset:      "60",
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		delay := mock.delays[r.URL.Path]
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the base URL of the products resource.
func (m *MockAPI) URL() string {
	return m.server.URL + "/products"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.LastRequestHeader = nil
}

// AddProducts puts products into the served catalog.
func (m *MockAPI) AddProducts(products ...catalog.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		m.products[p.ID] = p
	}
}

// SetCategoryIndex sets the raw JSON body of /products/categories.
func (m *MockAPI) SetCategoryIndex(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = body
}

// SetRateLimit sets the rate limit headers sent by the default handler.
func (m *MockAPI) SetRateLimit(remain, reset int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remain = strconv.Itoa(remain)
	m.reset = strconv.Itoa(reset)
}

// SetDelay delays every response for path.
func (m *MockAPI) SetDelay(path string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[path] = d
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// FailProduct makes /products/{id} answer with status.
func (m *MockAPI) FailProduct(id, status int) {
	m.SetResponse(ProductPath(id), MockResponse{StatusCode: status, Body: `{"message":"failure"}`})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// ProductPath returns the request path of a single product.
func ProductPath(id int) string {
	return "/products/" + strconv.Itoa(id)
}

// CategoryPath returns the request path of a category listing.
func CategoryPath(category string) string {
	return "/products/category/" + category
}

// defaultHandler serves the in-memory catalog.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	w.Header().Set("X-RateLimit-Remaining", m.remain)
	w.Header().Set("X-RateLimit-Reset", m.reset)
	m.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	path := strings.TrimPrefix(r.URL.Path, "/products")
	switch {
	case path == "/categories":
		m.serveIndex(w)
	case strings.HasPrefix(path, "/category/"):
		m.serveCategory(w, strings.TrimPrefix(path, "/category/"), r.URL.Query().Get("limit"))
	default:
		id, err := strconv.Atoi(strings.TrimPrefix(path, "/"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		m.serveProduct(w, id)
	}
}

func (m *MockAPI) serveProduct(w http.ResponseWriter, id int) {
	m.mu.RLock()
	p, ok := m.products[id]
	m.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product with id '" + strconv.Itoa(id) + "' not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (m *MockAPI) serveCategory(w http.ResponseWriter, category, limitParam string) {
	m.mu.RLock()
	products := make([]catalog.Product, 0)
	for _, p := range m.products {
		if p.Category == category {
			products = append(products, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	total := len(products)
	limit, err := strconv.Atoi(limitParam)
	if err == nil && limit > 0 && limit < len(products) {
		products = products[:limit]
	}

	writeJSON(w, http.StatusOK, catalog.CategoryListResponse{
		Products: products,
		Total:    total,
		Limit:    len(products),
	})
}

func (m *MockAPI) serveIndex(w http.ResponseWriter) {
	m.mu.RLock()
	body := m.index
	m.mu.RUnlock()

	if body == "" {
		body = "[]"
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message": "Too many requests"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1",
			"Content-Type":          "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// SampleProduct returns a product with plausible field values.
func SampleProduct(id int, category string) catalog.Product {
	discount := 10.5
	return catalog.Product{
		ID:                 id,
		Title:              "Product " + strconv.Itoa(id),
		Description:        "Description of product " + strconv.Itoa(id),
		Category:           category,
		Brand:              "NovaBrand",
		Price:              float64(id) * 10,
		Rating:             4.5,
		DiscountPercentage: &discount,
		Stock:              id * 3,
		Images:             []string{"https://cdn.example.com/" + strconv.Itoa(id) + ".jpg"},
	}
}
