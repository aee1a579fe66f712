// Package gateway implements the resilient outbound-call core: one generic
// dispatcher that owns provider selection, circuit breaking, fixed-window
// rate limiting, bounded retries with backoff, deterministic fallback,
// response caching, and performance telemetry. The AI, messaging, and payment
// flavors are this same core under different configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relaygate/relaygate/internal/provider"
	"github.com/relaygate/relaygate/internal/store"
)

// Config is the per-flavor configuration surface.
type Config struct {
	// Domain selects which providers this gateway discovers from the
	// registry (ai, messaging, payment).
	Domain provider.Domain

	// DefaultProvider is tried when no chain entry qualifies.
	DefaultProvider string

	// FallbackChains maps a capability to its ordered provider preference
	// list.
	FallbackChains map[string][]string

	// MaxRetries is the total attempt budget per provider.
	MaxRetries int

	// BackoffBase and BackoffMultiplier parameterize the retry delay:
	// base * multiplier^(attempt-1) seconds.
	BackoffBase       float64
	BackoffMultiplier float64

	// RetryDelayExpression optionally overrides the backoff formula with a
	// whitelisted expression over attempt, base, and multiplier.
	RetryDelayExpression string

	// CircuitThreshold failures open a provider's circuit; CircuitTimeout is
	// the open period before a half-open trial.
	CircuitThreshold int
	CircuitTimeout   time.Duration

	// RateWindow and RateMax bound requests per provider per fixed window.
	RateWindow time.Duration
	RateMax    int

	// CacheTTL and CacheableCapabilities control the response cache.
	CacheTTL              time.Duration
	CacheableCapabilities []string

	// CallTimeout bounds each provider attempt. Zero disables it.
	CallTimeout time.Duration
}

// Gateway composes the selector, limiter, breaker, cache, retry executor,
// and metrics into the public Dispatch operation. One instance serves one
// domain flavor and is safe for concurrent use.
type Gateway struct {
	cfg      Config
	selector *Selector
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	cache    *ResponseCache
	retry    *RetryExecutor
	metrics  *MetricsRecorder
	events   EventSink
}

// New builds a gateway for cfg.Domain. Discovery happens here: the registry
// is listed once and filtered to providers advertising the domain; the
// result is held for the gateway's lifetime.
func New(cfg Config, registry provider.Registry, st store.Store, events EventSink) (*Gateway, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("gateway: domain is required")
	}
	if events == nil {
		events = NopSink{}
	}

	var discovered []provider.Metadata
	for _, m := range registry.List() {
		if m.Domain == cfg.Domain {
			discovered = append(discovered, m)
		}
	}
	if len(discovered) == 0 {
		log.Warnf("gateway %s: no providers discovered", cfg.Domain)
	} else {
		log.Infof("gateway %s: discovered %d providers", cfg.Domain, len(discovered))
	}

	delay, err := NewDelayPolicy(cfg.RetryDelayExpression, cfg.BackoffBase, cfg.BackoffMultiplier)
	if err != nil {
		return nil, fmt.Errorf("gateway %s: %w", cfg.Domain, err)
	}

	breaker := NewCircuitBreaker(st, cfg.CircuitThreshold, cfg.CircuitTimeout)
	metrics := NewMetricsRecorder()

	g := &Gateway{
		cfg:      cfg,
		selector: NewSelector(discovered, cfg.FallbackChains, cfg.DefaultProvider, breaker),
		limiter:  NewRateLimiter(st, cfg.RateWindow, cfg.RateMax),
		breaker:  breaker,
		cache:    NewResponseCache(st, cfg.CacheTTL, cfg.CacheableCapabilities),
		retry:    NewRetryExecutor(registry, breaker, metrics, events, cfg.MaxRetries, delay, cfg.CallTimeout),
		metrics:  metrics,
		events:   events,
	}
	return g, nil
}

// Dispatch invokes a capability against the best available provider. When
// providerHint is non-empty, selection is skipped and the hint is used
// directly, still subject to rate and circuit checks. Callers receive either
// a successful Result (possibly from a fallback provider, flagged via
// FallbackFrom) or a single wrapped error; raw executor errors never surface.
func (g *Gateway) Dispatch(ctx context.Context, capability string, payload map[string]any, providerHint string) (*Result, error) {
	dispatchID := uuid.NewString()

	current := providerHint
	if current == "" {
		selected, err := g.selector.SelectFor(ctx, capability)
		if err != nil {
			return nil, err
		}
		current = selected
	}

	var (
		tried        []string
		fallbackFrom string
		lastErr      error
	)

	for current != "" {
		tried = append(tried, current)

		res, err := g.tryProvider(ctx, dispatchID, current, capability, payload, fallbackFrom)
		if err == nil {
			return res, nil
		}
		lastErr = err

		next, ok := g.selector.Next(capability, current)
		if !ok || contains(tried, next) {
			break
		}
		log.WithFields(log.Fields{
			"capability": capability,
			"from":       current,
			"to":         next,
		}).Infof("falling back after failure: %v", err)
		g.metrics.RecordFallback()
		fallbackFrom = current
		current = next
	}

	return nil, &DispatchError{Capability: capability, Tried: tried, Err: lastErr}
}

// tryProvider runs the per-candidate pipeline: cache lookup, rate check,
// circuit check, then the retry loop; a success is cached when eligible.
func (g *Gateway) tryProvider(ctx context.Context, dispatchID, code, capability string, payload map[string]any, fallbackFrom string) (*Result, error) {
	if !g.selector.Known(code) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, code)
	}

	cacheable := g.cache.Eligible(capability)
	var cacheKey string
	if cacheable {
		key, err := g.cache.BuildKey(code, capability, payload)
		if err != nil {
			log.Warnf("cache key for %s/%s: %v", code, capability, err)
			cacheable = false
		} else {
			cacheKey = key
			if res, hit := g.cache.Get(ctx, key); hit {
				res.FallbackFrom = fallbackFrom
				res.Meta["dispatch_id"] = dispatchID
				g.metrics.RecordCacheHit()
				g.events.Emit(Event{
					Timestamp:    time.Now(),
					DispatchID:   dispatchID,
					Provider:     code,
					Capability:   capability,
					Success:      true,
					Source:       SourceCache,
					FallbackFrom: fallbackFrom,
				})
				return res, nil
			}
		}
	}

	start := time.Now()

	if err := g.limiter.CheckAndIncrement(ctx, code); err != nil {
		g.emitRejection(dispatchID, code, capability, fallbackFrom, err, "rate_limited")
		return nil, err
	}

	if err := g.breaker.Allow(ctx, code); err != nil {
		g.emitRejection(dispatchID, code, capability, fallbackFrom, err, "circuit_open")
		return nil, err
	}

	res, err := g.retry.ExecuteWithRetry(ctx, dispatchID, code, capability, payload)
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	if res.Meta == nil {
		res.Meta = make(map[string]any)
	}
	res.Meta["dispatch_id"] = dispatchID
	res.Meta["source"] = SourceAPI
	res.Meta["latency_ms"] = latency.Milliseconds()
	res.FallbackFrom = fallbackFrom

	if cacheable {
		if cerr := g.cache.Set(ctx, cacheKey, res); cerr != nil {
			log.Warnf("caching result for %s/%s: %v", code, capability, cerr)
		}
	}

	g.events.Emit(Event{
		Timestamp:    time.Now(),
		DispatchID:   dispatchID,
		Provider:     code,
		Capability:   capability,
		Attempt:      res.Attempt,
		Success:      true,
		Source:       SourceAPI,
		LatencyMS:    latency.Milliseconds(),
		FallbackFrom: fallbackFrom,
	})
	return res, nil
}

func (g *Gateway) emitRejection(dispatchID, code, capability, fallbackFrom string, err error, kind string) {
	g.events.Emit(Event{
		Timestamp:    time.Now(),
		DispatchID:   dispatchID,
		Provider:     code,
		Capability:   capability,
		Success:      false,
		Source:       SourceAPI,
		FallbackFrom: fallbackFrom,
		Error:        err.Error(),
		ErrorKind:    kind,
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Domain returns the flavor this gateway serves.
func (g *Gateway) Domain() provider.Domain { return g.cfg.Domain }

// Providers returns the discovered provider metadata in priority order.
func (g *Gateway) Providers() []provider.Metadata { return g.selector.Providers() }

// ProviderHealth returns the breaker record for one provider.
func (g *Gateway) ProviderHealth(ctx context.Context, code string) (Health, error) {
	return g.breaker.Health(ctx, code)
}

// Metrics returns a snapshot of the gateway's aggregates.
func (g *Gateway) Metrics() MetricsSnapshot { return g.metrics.Snapshot() }

// UpdateChains swaps the capability fallback chains at runtime.
func (g *Gateway) UpdateChains(chains map[string][]string) { g.selector.UpdateChains(chains) }

// UpdateCacheable swaps the cache-eligible capability set at runtime.
func (g *Gateway) UpdateCacheable(capabilities []string) { g.cache.UpdateCacheable(capabilities) }

// IsTerminal reports whether err is one of the gateway's terminal error
// types, as opposed to a per-provider condition that fallback may absorb.
func IsTerminal(err error) bool {
	var de *DispatchError
	return errors.Is(err, ErrNoHealthyProvider) || errors.As(err, &de)
}
