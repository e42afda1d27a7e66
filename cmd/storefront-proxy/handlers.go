package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/novamart-client/pkg/cart"
	"github.com/Sternrassler/novamart-client/pkg/metrics"
	"github.com/Sternrassler/novamart-client/pkg/storefront"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// readyFunc probes the cache backend. Nil means always ready.
type readyFunc func(ctx context.Context) error

type server struct {
	catalog *storefront.Catalog
	ready   readyFunc
	logger  zerolog.Logger
}

func newServer(catalog *storefront.Catalog, ready readyFunc, logger zerolog.Logger) *server {
	return &server{
		catalog: catalog,
		ready:   ready,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /products", s.productsHandler)
	mux.HandleFunc("GET /category/{name}", s.categoryHandler)
	mux.HandleFunc("GET /categories", s.categoriesHandler)
	mux.HandleFunc("GET /categories/all", s.categoryIndexHandler)

	mux.HandleFunc("GET /cart", s.cartHandler)
	mux.HandleFunc("POST /cart/items", s.addToCartHandler)
	mux.HandleFunc("POST /cart/items/{id}/increment", s.adjustCartHandler(func(c *cart.Store, id int) { c.Increment(id) }))
	mux.HandleFunc("POST /cart/items/{id}/decrement", s.adjustCartHandler(func(c *cart.Store, id int) { c.Decrement(id) }))
	mux.HandleFunc("DELETE /cart/items/{id}", s.adjustCartHandler(func(c *cart.Store, id int) { c.Remove(id) }))
	mux.HandleFunc("DELETE /cart", s.clearCartHandler)

	mux.HandleFunc("GET /cache/stats", s.cacheStatsHandler)
	mux.HandleFunc("GET /cache/health", s.cacheHealthHandler)
	mux.HandleFunc("GET /cache/export", s.cacheExportHandler)
	mux.HandleFunc("DELETE /cache", s.clearCacheHandler)

	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "cache backend unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) productsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, s.catalog.FetchByIDs(r.Context(), ids))
}

func (s *server) categoryHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, s.catalog.FetchByCategory(r.Context(), r.PathValue("name"), limit))
}

func (s *server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	names := splitList(r.URL.Query().Get("names"))
	s.writeJSON(w, http.StatusOK, s.catalog.FetchByCategories(r.Context(), names, limit))
}

func (s *server) categoryIndexHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.FetchAllCategories(r.Context()))
}

type cartView struct {
	ID    string          `json:"id"`
	Items []cart.LineItem `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (s *server) cartHandler(w http.ResponseWriter, r *http.Request) {
	s.writeCart(w)
}

func (s *server) writeCart(w http.ResponseWriter) {
	c := s.catalog.Cart()
	s.writeJSON(w, http.StatusOK, cartView{
		ID:    c.ID().String(),
		Items: c.Items(),
		Count: c.Count(),
		Total: c.Total(),
	})
}

type addToCartRequest struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

func (s *server) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID < 1 {
		http.Error(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	products := s.catalog.FetchByIDs(r.Context(), []int{req.ID})
	if len(products) == 0 {
		http.Error(w, fmt.Sprintf("product %d not found", req.ID), http.StatusNotFound)
		return
	}

	s.catalog.Cart().AddOrIncrement(products[0], req.Quantity)
	s.writeCart(w)
}

func (s *server) adjustCartHandler(adjust func(c *cart.Store, id int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}
		adjust(s.catalog.Cart(), id)
		s.writeCart(w)
	}
}

func (s *server) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	s.catalog.Cart().Clear()
	s.writeCart(w)
}

func (s *server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.CacheStats(r.Context()))
}

func (s *server) cacheHealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.HealthCheck(r.Context()))
}

func (s *server) cacheExportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.catalog.ExportCache(r.Context(), w); err != nil {
		s.logger.Error().Err(err).Msg("Cache export failed")
	}
}

func (s *server) clearCacheHandler(w http.ResponseWriter, r *http.Request) {
	removed := s.catalog.ClearCache(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write response")
	}
}

// parseIDs parses a comma separated id list. Order and duplicates are kept.
func parseIDs(raw string) ([]int, error) {
	parts := splitList(raw)
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid product id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
