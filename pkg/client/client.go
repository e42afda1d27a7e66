// Package client provides the Product API HTTP client with rate limiting,
// retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/catalog"
	"github.com/Sternrassler/novamart-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Prometheus metrics for Product API client operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_requests_total",
		Help: "Total Product API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_api_request_duration_seconds",
		Help:    "Product API request duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_errors_total",
		Help: "Total Product API errors by class",
	}, []string{"class"})
)

// Endpoint labels used in metrics and logs.
const (
	endpointProduct    = "product"
	endpointCategory   = "category"
	endpointCategories = "categories"
)

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// DefaultBaseURL is the public Product API.
const DefaultBaseURL = "https://dummyjson.com/products"

// Client talks to the Product API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the products resource, without trailing slash.
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration

	// RateLimiter gates requests on the upstream budget. Optional.
	RateLimiter *ratelimit.Tracker

	// HTTPClient overrides the default otelhttp-instrumented client. Optional.
	HTTPClient *http.Client

	Logger zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		Timeout:        10 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

// New creates a new Product API client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: cfg.RateLimiter,
		config:      cfg,
		logger:      cfg.Logger.With().Str("component", "product-api-client").Logger(),
	}, nil
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id int) (catalog.Product, error) {
	var p catalog.Product
	if err := c.getJSON(ctx, endpointProduct, c.baseURL+"/"+strconv.Itoa(id), &p); err != nil {
		return catalog.Product{}, err
	}
	return p.Normalize(), nil
}

// GetCategory fetches the products of one category. A limit <= 0 uses the API default.
func (c *Client) GetCategory(ctx context.Context, category string, limit int) ([]catalog.Product, error) {
	u := c.baseURL + "/category/" + url.PathEscape(category)
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}

	var resp catalog.CategoryListResponse
	if err := c.getJSON(ctx, endpointCategory, u, &resp); err != nil {
		return nil, err
	}

	products := make([]catalog.Product, 0, len(resp.Products))
	for _, p := range resp.Products {
		products = append(products, p.Normalize())
	}
	return products, nil
}

// GetCategories fetches the category index.
func (c *Client) GetCategories(ctx context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	if err := c.getJSON(ctx, endpointCategories, c.baseURL+"/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// getJSON performs a GET with rate limiting and retries and decodes a 2xx body into dst.
func (c *Client) getJSON(ctx context.Context, endpoint, rawURL string, dst any) error {
	startTime := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if c.rateLimiter != nil {
		allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed")
			return fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by rate limiter")
			apiRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return ErrRateLimited
		}
	}

	retryCfg := RetryConfig{
		MaxAttempts:       c.config.MaxRetries,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        DefaultRetryConfig().MaxBackoff,
		BackoffMultiplier: DefaultRetryConfig().BackoffMultiplier,
	}

	return retryWithBackoff(ctx, retryCfg, c.logger, func() (ErrorClass, error) {
		return c.attempt(ctx, endpoint, rawURL, dst)
	})
}

// attempt performs one HTTP round trip.
func (c *Client) attempt(ctx context.Context, endpoint, rawURL string, dst any) (ErrorClass, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ErrorClassClient, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", rawURL).
		Str("request_id", requestID).
		Msg("Executing Product API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Str("request_id", requestID).Msg("HTTP request failed")
		if ctx.Err() != nil {
			// Caller gave up; retrying cannot succeed.
			return ErrorClassClient, err
		}
		return ErrorClassNetwork, err
	}
	defer resp.Body.Close()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if errorClass := classifyStatus(resp.StatusCode); errorClass != "" {
		apiErrorsTotal.WithLabelValues(string(errorClass)).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errorClass)).
			Str("request_id", requestID).
			Msg("Product API request error")

		return errorClass, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errorClass,
			Message:    strings.TrimSpace(resp.Status + " " + string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		apiErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return ErrorClassDecode, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode response body",
			Err:        err,
		}
	}

	return "", nil
}

// IsRetryable reports whether err came from a failure class the client retries.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRetryExhausted) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shouldRetry(apiErr.ErrorClass)
	}
	return false
}
