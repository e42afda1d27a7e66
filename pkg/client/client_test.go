package client

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/novamart-client/internal/testutil"
	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/ratelimit"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const testUserAgent = "NovaMartTest/1.0.0 (test@example.com)"

// newTestClient creates a client against mock with millisecond backoff.
func newTestClient(t *testing.T, mock *testutil.MockAPI, tracker *ratelimit.Tracker) *Client {
	t.Helper()

	cfg := DefaultConfig(testUserAgent)
	cfg.BaseURL = mock.URL()
	cfg.InitialBackoff = time.Millisecond
	cfg.Timeout = 2 * time.Second
	cfg.RateLimiter = tracker

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:        "empty user agent",
			mutate:      func(c *Config) { c.UserAgent = "" },
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "relative base url",
			mutate:      func(c *Config) { c.BaseURL = "/products" },
			expectError: true,
			errorMsg:    `invalid base url "/products"`,
		},
		{
			name:        "zero timeout",
			mutate:      func(c *Config) { c.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout must be > 0 (got 0s)",
		},
		{
			name:        "no attempts",
			mutate:      func(c *Config) { c.MaxRetries = 0 },
			expectError: true,
			errorMsg:    "max_retries must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(testUserAgent)
			tt.mutate(&cfg)

			client, err := New(cfg)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if client == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(testUserAgent)

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.UserAgent != testUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, testUserAgent)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", cfg.InitialBackoff)
	}
}

func TestGetProduct(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.AddProducts(testutil.SampleProduct(7, "beauty"))

	c := newTestClient(t, mock, nil)

	p, err := c.GetProduct(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.ID != 7 || p.Title != "Product 7" || p.Category != "beauty" {
		t.Errorf("GetProduct() = %+v", p)
	}
	if p.DiscountPercentage == nil || *p.DiscountPercentage != 10.5 {
		t.Errorf("DiscountPercentage = %v, want 10.5", p.DiscountPercentage)
	}

	headers := mock.LastRequestHeader
	if got := headers.Get("User-Agent"); got != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, testUserAgent)
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
	if _, err := uuid.Parse(headers.Get(HeaderRequestID)); err != nil {
		t.Errorf("%s is not a uuid: %v", HeaderRequestID, err)
	}
}

func TestGetProduct_NotFoundNotRetried(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, mock, nil)

	_, err := c.GetProduct(context.Background(), 404)
	if !IsNotFound(err) {
		t.Fatalf("Expected not found error, got %v", err)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Client errors must not be retried")
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("Request count = %d, want 1", got)
	}
}

func TestGetCategory(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.AddProducts(
		testutil.SampleProduct(1, "beauty"),
		testutil.SampleProduct(2, "beauty"),
		testutil.SampleProduct(3, "beauty"),
		testutil.SampleProduct(4, "laptops"),
	)

	c := newTestClient(t, mock, nil)

	tests := []struct {
		name     string
		category string
		limit    int
		wantIDs  []int
	}{
		{"all products", "beauty", 0, []int{1, 2, 3}},
		{"limited", "beauty", 2, []int{1, 2}},
		{"other category", "laptops", 10, []int{4}},
		{"unknown category", "garden", 10, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := c.GetCategory(context.Background(), tt.category, tt.limit)
			if err != nil {
				t.Fatalf("GetCategory() error = %v", err)
			}
			if len(products) != len(tt.wantIDs) {
				t.Fatalf("len = %d, want %d", len(products), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if products[i].ID != id {
					t.Errorf("products[%d].ID = %d, want %d", i, products[i].ID, id)
				}
				if products[i].Images == nil {
					t.Errorf("products[%d].Images is nil", i)
				}
			}
		})
	}
}

func TestGetCategories(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantSlugs []string
		wantNames []string
	}{
		{
			name:      "string list",
			body:      `["beauty","laptops"]`,
			wantSlugs: []string{"beauty", "laptops"},
			wantNames: []string{"beauty", "laptops"},
		},
		{
			name:      "object list",
			body:      `[{"slug":"beauty","name":"Beauty","url":"https://x/beauty"},{"slug":"home-decoration","name":"Home Decoration"}]`,
			wantSlugs: []string{"beauty", "home-decoration"},
			wantNames: []string{"Beauty", "Home Decoration"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockAPI()
			defer mock.Close()
			mock.SetCategoryIndex(tt.body)

			c := newTestClient(t, mock, nil)

			categories, err := c.GetCategories(context.Background())
			if err != nil {
				t.Fatalf("GetCategories() error = %v", err)
			}
			if len(categories) != len(tt.wantSlugs) {
				t.Fatalf("len = %d, want %d", len(categories), len(tt.wantSlugs))
			}
			for i := range categories {
				if categories[i].Slug != tt.wantSlugs[i] || categories[i].Name != tt.wantNames[i] {
					t.Errorf("categories[%d] = %+v", i, categories[i])
				}
			}
		})
	}
}

func TestGet_RetryOnServerError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(testutil.ProductPath(1), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":1,"title":"Recovered","price":5}`))
	})

	c := newTestClient(t, mock, nil)

	p, err := c.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Title != "Recovered" {
		t.Errorf("Title = %q, want Recovered", p.Title)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGet_RetryOnRateLimit(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var calls atomic.Int32
	mock.SetHandler(testutil.ProductPath(2), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":2,"title":"Second"}`))
	})

	c := newTestClient(t, mock, nil)

	if _, err := c.GetProduct(context.Background(), 2); err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestGet_RetryExhausted(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.ProductPath(3), testutil.NewServerErrorResponse())

	c := newTestClient(t, mock, nil)

	_, err := c.GetProduct(context.Background(), 3)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected wrapped 500 APIError, got %v", err)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("Request count = %d, want 3", got)
	}
}

func TestGet_DecodeError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse(testutil.ProductPath(4), testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"id":`})

	c := newTestClient(t, mock, nil)

	_, err := c.GetProduct(context.Background(), 4)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassDecode {
		t.Fatalf("Expected decode APIError, got %v", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("Request count = %d, want 1", got)
	}
}

func TestGet_RateLimiterBlocks(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	tracker := ratelimit.NewTracker(storage.NewMemoryStore(0), "test", clock.Real{}, zerolog.Nop())
	h := http.Header{}
	h.Set(ratelimit.HeaderRemaining, "1")
	h.Set(ratelimit.HeaderReset, "60")
	if err := tracker.UpdateFromHeaders(context.Background(), h); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	c := newTestClient(t, mock, tracker)

	_, err := c.GetProduct(context.Background(), 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("Request count = %d, want 0", got)
	}
}

func TestGet_RateLimiterUpdatedFromHeaders(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.AddProducts(testutil.SampleProduct(1, "beauty"))
	mock.SetRateLimit(42, 60)

	tracker := ratelimit.NewTracker(storage.NewMemoryStore(0), "test", clock.Real{}, zerolog.Nop())
	c := newTestClient(t, mock, tracker)

	if _, err := c.GetProduct(context.Background(), 1); err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 42 {
		t.Errorf("Remaining = %d, want 42", state.Remaining)
	}
}

func TestGet_ContextCancelledNotRetried(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.AddProducts(testutil.SampleProduct(1, "beauty"))
	mock.SetDelay(testutil.ProductPath(1), time.Second)

	c := newTestClient(t, mock, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GetProduct(ctx, 1)
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Cancelled requests must not be retried, got %v", err)
	}
}
