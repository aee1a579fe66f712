package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaygate/relaygate/internal/store"
)

func newTestLimiter(t *testing.T, window time.Duration, max int) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(store.NewMemoryStore(), window, max)
	now := time.Unix(1_700_000_000, 0)
	rl.SetClock(func() time.Time { return now })
	return rl, &now
}

func TestRateLimiter_RejectsAtBoundary(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t, 60*time.Second, 100)

	for i := 1; i <= 100; i++ {
		if err := rl.CheckAndIncrement(ctx, "openai"); err != nil {
			t.Fatalf("call %d rejected: %v", i, err)
		}
	}

	err := rl.CheckAndIncrement(ctx, "openai")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("call 101: got %v, want ErrRateLimited", err)
	}

	// The rejection must not have incremented past the limit.
	w, err := rl.Window(ctx, "openai")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if w.Count != 100 {
		t.Fatalf("count = %d, want 100", w.Count)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	ctx := context.Background()
	rl, now := newTestLimiter(t, 60*time.Second, 2)

	_ = rl.CheckAndIncrement(ctx, "openai")
	_ = rl.CheckAndIncrement(ctx, "openai")
	if err := rl.CheckAndIncrement(ctx, "openai"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection, got %v", err)
	}

	// Still inside the window.
	*now = now.Add(59 * time.Second)
	if err := rl.CheckAndIncrement(ctx, "openai"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection before reset, got %v", err)
	}

	// Window elapsed: counter resets and a new call succeeds.
	*now = now.Add(time.Second)
	if err := rl.CheckAndIncrement(ctx, "openai"); err != nil {
		t.Fatalf("post-reset call rejected: %v", err)
	}
	w, _ := rl.Window(ctx, "openai")
	if w.Count != 1 {
		t.Fatalf("count = %d after reset, want 1", w.Count)
	}
}

func TestRateLimiter_ProvidersAreIndependent(t *testing.T) {
	ctx := context.Background()
	rl, _ := newTestLimiter(t, 60*time.Second, 1)

	_ = rl.CheckAndIncrement(ctx, "openai")
	if err := rl.CheckAndIncrement(ctx, "openai"); !errors.Is(err, ErrRateLimited) {
		t.Fatal("expected openai to be limited")
	}
	if err := rl.CheckAndIncrement(ctx, "anthropic"); err != nil {
		t.Fatalf("anthropic must have its own window: %v", err)
	}
}
