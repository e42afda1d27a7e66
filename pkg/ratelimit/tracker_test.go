package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/novamart-client/pkg/clock"
	"github.com/Sternrassler/novamart-client/pkg/storage"
	"github.com/rs/zerolog"
)

func newTestTracker() (*Tracker, *clock.Fake) {
	clk := clock.NewFake(now)
	tracker := NewTracker(storage.NewMemoryStore(0), "test", clk, zerolog.Nop())
	tracker.SetThrottleDelay(time.Millisecond)
	return tracker, clk
}

func headers(remain, reset string) http.Header {
	h := http.Header{}
	if remain != "" {
		h.Set(HeaderRemaining, remain)
	}
	if reset != "" {
		h.Set(HeaderReset, reset)
	}
	return h
}

func TestTracker_DefaultStateIsHealthy(t *testing.T) {
	tracker, _ := newTestTracker()

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 100 || !state.IsHealthy {
		t.Errorf("default state = %+v, want healthy with 100 remaining", state)
	}
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name            string
		remain          string
		reset           string
		expectedRemain  int
		expectedHealthy bool
		shouldError     bool
	}{
		{name: "healthy state", remain: "100", reset: "60", expectedRemain: 100, expectedHealthy: true},
		{name: "warning state", remain: "15", reset: "30", expectedRemain: 15},
		{name: "critical state", remain: "3", reset: "45", expectedRemain: 3},
		{name: "missing reset header", remain: "70", expectedRemain: 70, expectedHealthy: true},
		{name: "invalid remain header", remain: "abc", reset: "60", shouldError: true},
		{name: "invalid reset header", remain: "10", reset: "soon", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := newTestTracker()
			ctx := context.Background()

			err := tracker.UpdateFromHeaders(ctx, headers(tt.remain, tt.reset))
			if (err != nil) != tt.shouldError {
				t.Fatalf("UpdateFromHeaders() error = %v, shouldError %v", err, tt.shouldError)
			}
			if tt.shouldError {
				return
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if state.Remaining != tt.expectedRemain {
				t.Errorf("Remaining = %d, want %d", state.Remaining, tt.expectedRemain)
			}
			if state.IsHealthy != tt.expectedHealthy {
				t.Errorf("IsHealthy = %v, want %v", state.IsHealthy, tt.expectedHealthy)
			}
		})
	}
}

func TestTracker_UpdateFromHeaders_NoHeaders(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	if err := tracker.UpdateFromHeaders(ctx, http.Header{}); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	state, _ := tracker.GetState(ctx)
	if state.Remaining != 100 {
		t.Errorf("state changed without headers: %+v", state)
	}
}

func TestTracker_ShouldAllowRequest(t *testing.T) {
	tests := []struct {
		name    string
		remain  string
		reset   string
		advance time.Duration
		allowed bool
	}{
		{name: "healthy", remain: "80", reset: "60", allowed: true},
		{name: "throttled but allowed", remain: "10", reset: "60", allowed: true},
		{name: "critical blocks", remain: "2", reset: "60", allowed: false},
		{name: "critical after reset allows", remain: "2", reset: "60", advance: 61 * time.Second, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, clk := newTestTracker()
			ctx := context.Background()

			if err := tracker.UpdateFromHeaders(ctx, headers(tt.remain, tt.reset)); err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}
			clk.Advance(tt.advance)

			allowed, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if allowed != tt.allowed {
				t.Errorf("ShouldAllowRequest() = %v, want %v", allowed, tt.allowed)
			}
		})
	}
}

func TestTracker_ThrottleRespectsContext(t *testing.T) {
	tracker, _ := newTestTracker()
	tracker.SetThrottleDelay(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	if err := tracker.UpdateFromHeaders(ctx, headers("10", "60")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	cancel()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if allowed || err == nil {
		t.Errorf("ShouldAllowRequest() = %v, %v; want false with context error", allowed, err)
	}
}
