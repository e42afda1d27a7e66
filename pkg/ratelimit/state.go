// Package ratelimit tracks the Product API request budget and gates requests.
// It reads the X-RateLimit-Remaining and X-RateLimit-Reset response headers
// so the client backs off before the upstream starts rejecting requests.
package ratelimit

import (
	"time"
)

// Response headers carrying the upstream request budget.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Thresholds for rate limit decisions.
const (
	// ThresholdCritical blocks all requests when remaining falls below this value.
	ThresholdCritical = 5

	// ThresholdWarning applies throttling when remaining falls below this value.
	ThresholdWarning = 20

	// ThresholdHealthy indicates normal operation.
	ThresholdHealthy = 50
)

// State is the last observed upstream request budget.
type State struct {
	// Remaining is the number of requests allowed before the window resets.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= ThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// IsStale returns true if the state is older than maxAge at now.
func (s *State) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests should be blocked.
// A window that has already reset never blocks.
func (s *State) NeedsCriticalBlock(now time.Time) bool {
	return s.Remaining < ThresholdCritical && now.Before(s.ResetAt)
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling(now time.Time) bool {
	return s.Remaining < ThresholdWarning && now.Before(s.ResetAt) && !s.NeedsCriticalBlock(now)
}

// TimeUntilReset returns the duration until the window resets, or 0.
func (s *State) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= ThresholdHealthy
}
