package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	apiRequestsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_api_requests_remaining",
		Help: "Requests remaining in the current Product API rate limit window",
	})

	apiRateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_api_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to an exhausted rate limit",
	})

	apiRateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_api_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low rate limit",
	})
)

// DefaultThrottleDelay is how long a request waits in the warning band.
const DefaultThrottleDelay = 1 * time.Second

// Tracker persists the upstream budget in a storage.Store and gates requests.
type Tracker struct {
	store         storage.Store
	key           string
	clock         clock.Clock
	logger        zerolog.Logger
	throttleDelay time.Duration
}

// NewTracker creates a tracker storing its state under "<ns>_ratelimit".
func NewTracker(store storage.Store, ns string, clk clock.Clock, logger zerolog.Logger) *Tracker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Tracker{
		store:         store,
		key:           ns + "_ratelimit",
		clock:         clk,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
	}
}

// SetThrottleDelay overrides the warning-band delay (for testing).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState returns the stored state, or a healthy default when none exists.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	data, err := t.store.Get(ctx, t.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			t.logger.Debug().Msg("No rate limit state stored, assuming healthy")
			now := t.clock.Now()
			return &State{
				Remaining:  100,
				ResetAt:    now,
				LastUpdate: now,
				IsHealthy:  true,
			}, nil
		}
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse rate limit state: %w", err)
	}
	state.UpdateHealth()
	return &state, nil
}

// UpdateFromHeaders records the budget advertised by a response.
// Responses without the headers leave the state unchanged.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetSeconds := 0
	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		resetSeconds, err = strconv.Atoi(resetStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
	}

	now := t.clock.Now()
	state := &State{
		Remaining:  remain,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}
	state.UpdateHealth()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal rate limit state: %w", err)
	}
	if err := t.store.Set(ctx, t.key, data); err != nil {
		return fmt.Errorf("store rate limit state: %w", err)
	}

	apiRequestsRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(now):
		t.logger.Error().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Product API rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling(now):
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Product API rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("Product API rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest returns false when the budget is exhausted until reset.
// In the warning band it waits for the throttle delay (or until ctx is done) and allows.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}

	now := t.clock.Now()

	if state.NeedsCriticalBlock(now) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset(now)).
			Msg("Product API rate limit exhausted - blocking request")
		apiRateLimitBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(now) {
		t.logger.Debug().
			Int("remaining", state.Remaining).
			Msg("Product API rate limit low - throttling request")
		apiRateLimitThrottlesTotal.Inc()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(t.throttleDelay):
		}
	}

	return true, nil
}
