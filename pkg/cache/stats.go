package cache

import (
	"context"
	"encoding/json"
	"math"
)

// HealthStatus summarises the state of the product cache.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// Stats describes what the product tier currently holds.
type Stats struct {
	CachedProducts int     `json:"cached_products"`
	CachedBatches  int     `json:"cached_batches"`
	TotalSizeKB    float64 `json:"total_size_kb"`
}

// Health is the result of a cache health check.
type Health struct {
	Status           HealthStatus `json:"status"`
	Stats            Stats        `json:"stats"`
	ProductCount     int          `json:"product_count"`
	HasCorruptedData bool         `json:"has_corrupted_data"`
	Message          string       `json:"message,omitempty"`
}

// Stats counts product entries and batch records and their stored size.
func (c *ProductCache) Stats(ctx context.Context) Stats {
	productPrefix := ProductPrefix(c.ns)
	batchPrefix := BatchPrefix(c.ns)

	size := c.kv.SizeWithPrefix(ctx, productPrefix) + c.kv.SizeWithPrefix(ctx, batchPrefix)

	return Stats{
		CachedProducts: len(c.kv.KeysWithPrefix(ctx, productPrefix)),
		CachedBatches:  len(c.kv.KeysWithPrefix(ctx, batchPrefix)),
		TotalSizeKB:    math.Round(float64(size)/1024*100) / 100,
	}
}

// HealthCheck reports "warning" when a cached product lacks an id or price.
// Expired entries encountered during the check are evicted.
func (c *ProductCache) HealthCheck(ctx context.Context) Health {
	keys, err := c.kv.store.Keys(ctx, ProductPrefix(c.ns))
	if err != nil {
		c.kv.logger.Error().Err(err).Msg("Cache health check failed")
		return Health{Status: HealthError, Message: err.Error()}
	}

	stats := c.Stats(ctx)

	count := 0
	corrupted := false
	for _, key := range keys {
		payload, err := c.kv.Lookup(ctx, key, TTL(KindProduct))
		if err != nil {
			continue
		}
		count++

		var fields struct {
			ID    *int     `json:"id"`
			Price *float64 `json:"price"`
		}
		if err := json.Unmarshal(payload, &fields); err != nil ||
			fields.ID == nil || *fields.ID == 0 ||
			fields.Price == nil || *fields.Price == 0 {
			corrupted = true
		}
	}

	status := HealthHealthy
	if corrupted {
		status = HealthWarning
	}

	return Health{
		Status:           status,
		Stats:            stats,
		ProductCount:     count,
		HasCorruptedData: corrupted,
	}
}
