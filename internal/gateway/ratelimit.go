package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/store"
)

// RateWindow is the persisted fixed-window counter for one provider. Like
// breaker health it lives in the shared store so every concurrent dispatcher
// counts against the same window.
type RateWindow struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
}

// RateLimiter enforces a fixed-window request budget per provider. The check
// rejects at the boundary: a window at max is never incremented past it.
type RateLimiter struct {
	store     store.Store
	window    time.Duration
	max       int
	keyPrefix string
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing max requests per window.
func NewRateLimiter(st store.Store, window time.Duration, max int) *RateLimiter {
	if window <= 0 {
		window = 60 * time.Second
	}
	if max <= 0 {
		max = 100
	}
	return &RateLimiter{
		store:     st,
		window:    window,
		max:       max,
		keyPrefix: "rate:",
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (rl *RateLimiter) SetClock(now func() time.Time) { rl.now = now }

// CheckAndIncrement consumes one slot in the provider's current window. It
// returns ErrRateLimited (wrapped with the provider code) when the window is
// full; the counter is not incremented in that case.
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, code string) error {
	var rejected bool
	// The record outlives its window by one extra window so an idle provider's
	// stale entry eventually expires from the store.
	err := rl.store.Update(ctx, rl.keyPrefix+code, 2*rl.window, func(raw string, exists bool) (string, error) {
		now := rl.now()
		w := RateWindow{WindowStart: now}
		if exists && raw != "" {
			if err := json.Unmarshal([]byte(raw), &w); err != nil {
				w = RateWindow{WindowStart: now}
			}
		}

		if now.Sub(w.WindowStart) >= rl.window {
			w = RateWindow{WindowStart: now}
		}

		if w.Count >= rl.max {
			rejected = true
		} else {
			w.Count++
		}

		b, _ := json.Marshal(w)
		return string(b), nil
	})
	if err != nil {
		return fmt.Errorf("rate check for %s: %w", code, err)
	}
	if rejected {
		return fmt.Errorf("provider %s: %d requests per %s: %w", code, rl.max, rl.window, ErrRateLimited)
	}
	return nil
}

// Window returns the provider's current window state for diagnostics.
func (rl *RateLimiter) Window(ctx context.Context, code string) (RateWindow, error) {
	raw, ok, err := rl.store.Get(ctx, rl.keyPrefix+code)
	if err != nil || !ok {
		return RateWindow{}, err
	}
	var w RateWindow
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return RateWindow{}, nil
	}
	return w, nil
}
