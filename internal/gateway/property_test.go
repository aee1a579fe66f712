package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/relaygate/relaygate/internal/store"
)

// TestProperty_BreakerOpensExactlyAtThreshold checks that for any threshold N
// the circuit stays closed through N-1 recorded failures and opens on the
// Nth, independent of how many successes preceded the failure run.
func TestProperty_BreakerOpensExactlyAtThreshold(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("circuit opens on the Nth consecutive failure", prop.ForAll(
		func(threshold int, priorSuccesses int) bool {
			ctx := context.Background()
			breaker := NewCircuitBreaker(store.NewMemoryStore(), threshold, time.Minute)

			for i := 0; i < priorSuccesses; i++ {
				if err := breaker.RecordSuccess(ctx, "p"); err != nil {
					return false
				}
			}

			for i := 0; i < threshold-1; i++ {
				if err := breaker.RecordFailure(ctx, "p"); err != nil {
					return false
				}
				if err := breaker.Allow(ctx, "p"); err != nil {
					return false
				}
			}

			if err := breaker.RecordFailure(ctx, "p"); err != nil {
				return false
			}
			return errors.Is(breaker.Allow(ctx, "p"), ErrCircuitOpen)
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_RateWindowNeverOvercounts checks that within one fixed window
// exactly max requests pass regardless of how many are attempted.
func TestProperty_RateWindowNeverOvercounts(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("at most max requests pass per window", prop.ForAll(
		func(max int, attempts int) bool {
			ctx := context.Background()
			limiter := NewRateLimiter(store.NewMemoryStore(), time.Minute, max)

			passed := 0
			for i := 0; i < attempts; i++ {
				err := limiter.CheckAndIncrement(ctx, "p")
				if err == nil {
					passed++
				} else if !errors.Is(err, ErrRateLimited) {
					return false
				}
			}

			want := attempts
			if max < want {
				want = max
			}
			return passed == want
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 80),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_CacheKeyIgnoresVolatileFields checks that injecting any
// volatile field with any value never changes the canonical cache key,
// while changing a durable field always does.
func TestProperty_CacheKeyIgnoresVolatileFields(t *testing.T) {
	properties := gopter.NewProperties(nil)
	cache := NewResponseCache(store.NewMemoryStore(), time.Minute, []string{"embedding"})

	anyVolatile := make([]interface{}, len(volatileFields))
	for i, f := range volatileFields {
		anyVolatile[i] = f
	}

	properties.Property("volatile fields do not affect the key", prop.ForAll(
		func(input string, field string, value string) bool {
			base := map[string]any{"input": input}
			baseKey, err := cache.BuildKey("openai", "embedding", base)
			if err != nil {
				return false
			}

			noisy := map[string]any{"input": input, field: value}
			noisyKey, err := cache.BuildKey("openai", "embedding", noisy)
			if err != nil {
				return false
			}
			return noisyKey == baseKey
		},
		gen.AlphaString(),
		gen.OneConstOf(anyVolatile...),
		gen.Identifier(),
	))

	properties.Property("durable fields always affect the key", prop.ForAll(
		func(a string, b string) bool {
			if a == b {
				return true
			}
			keyA, err := cache.BuildKey("openai", "embedding", map[string]any{"input": a})
			if err != nil {
				return false
			}
			keyB, err := cache.BuildKey("openai", "embedding", map[string]any{"input": b})
			if err != nil {
				return false
			}
			return keyA != keyB
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_DelayPolicyIsMonotonic checks that the default backoff never
// shrinks as attempts grow, for any positive base and multiplier >= 1.
func TestProperty_DelayPolicyIsMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("backoff is non-decreasing in the attempt number", prop.ForAll(
		func(base float64, multiplier float64) bool {
			policy, err := NewDelayPolicy("", base, multiplier)
			if err != nil {
				return false
			}
			prev := time.Duration(0)
			for attempt := 1; attempt <= 6; attempt++ {
				d := policy.Delay(attempt)
				if d < prev {
					return false
				}
				prev = d
			}
			return true
		},
		gen.Float64Range(0.01, 5),
		gen.Float64Range(1, 3),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
