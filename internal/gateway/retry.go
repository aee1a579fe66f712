package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relaygate/relaygate/internal/provider"
)

// RetryExecutor runs the bounded retry loop around a single provider's
// executor. It owns per-attempt timeouts, backoff sleeps, and the breaker
// and metrics bookkeeping for each outcome.
type RetryExecutor struct {
	registry    provider.Registry
	breaker     *CircuitBreaker
	metrics     *MetricsRecorder
	events      EventSink
	maxRetries  int
	delay       *DelayPolicy
	callTimeout time.Duration

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a retry executor. maxRetries is the total attempt
// budget per provider (default 3); callTimeout bounds each attempt and
// zero disables the per-attempt deadline.
func NewRetryExecutor(registry provider.Registry, breaker *CircuitBreaker, metrics *MetricsRecorder, events EventSink, maxRetries int, delay *DelayPolicy, callTimeout time.Duration) *RetryExecutor {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if delay == nil {
		delay, _ = NewDelayPolicy("", 1, 2)
	}
	if events == nil {
		events = NopSink{}
	}
	return &RetryExecutor{
		registry:    registry,
		breaker:     breaker,
		metrics:     metrics,
		events:      events,
		maxRetries:  maxRetries,
		delay:       delay,
		callTimeout: callTimeout,
		sleep:       sleepContext,
	}
}

// sleepContext waits for d, returning early with the context error when the
// caller gives up. Only the calling goroutine is suspended.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecuteWithRetry invokes the provider's executor up to the attempt budget.
// A success closes the circuit and returns immediately. Auth and quota
// failures stop the loop at once. After exhaustion the provider is marked
// unhealthy and the last error is returned.
func (re *RetryExecutor) ExecuteWithRetry(ctx context.Context, dispatchID, code, capability string, payload map[string]any) (*Result, error) {
	exec, ok := re.registry.Get(code)
	if !ok {
		return nil, &provider.Error{Kind: provider.KindGeneric, Provider: code, Message: "executor not registered", Err: ErrUnknownProvider}
	}

	var lastErr error
	for attempt := 1; attempt <= re.maxRetries; attempt++ {
		start := time.Now()
		res, err := re.attempt(ctx, exec, capability, payload, attempt)
		latency := time.Since(start)

		if err == nil {
			if berr := re.breaker.RecordSuccess(ctx, code); berr != nil {
				log.Warnf("recording success for %s: %v", code, berr)
			}
			re.metrics.Record(code, capability, latency, true)
			return &Result{
				Success:    true,
				Provider:   code,
				Capability: capability,
				Attempt:    attempt,
				Output:     res.Output,
				Meta:       res.Meta,
			}, nil
		}

		lastErr = err
		re.metrics.Record(code, capability, latency, false)
		re.events.Emit(Event{
			Timestamp:  time.Now(),
			DispatchID: dispatchID,
			Provider:   code,
			Capability: capability,
			Attempt:    attempt,
			Success:    false,
			Source:     SourceAPI,
			LatencyMS:  latency.Milliseconds(),
			Error:      err.Error(),
			ErrorKind:  string(provider.KindOf(err)),
		})
		log.WithFields(log.Fields{
			"provider":   code,
			"capability": capability,
			"attempt":    attempt,
			"error_kind": provider.KindOf(err),
		}).Warnf("provider call failed: %v", err)

		if !re.shouldRetry(err, attempt) {
			break
		}

		if serr := re.sleep(ctx, re.delay.Delay(attempt)); serr != nil {
			lastErr = serr
			break
		}
	}

	if berr := re.breaker.RecordFailure(ctx, code); berr != nil {
		log.Warnf("recording failure for %s: %v", code, berr)
	}
	return nil, lastErr
}

// attempt performs one executor call under the per-attempt timeout. The
// attempt number rides along in the payload so executors and audit trails can
// see it; the cache canonicalizer strips it again.
func (re *RetryExecutor) attempt(ctx context.Context, exec provider.Executor, capability string, payload map[string]any, attempt int) (*provider.Result, error) {
	if re.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, re.callTimeout)
		defer cancel()
	}

	attemptPayload := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		attemptPayload[k] = v
	}
	attemptPayload["attempt"] = attempt

	return exec.Execute(ctx, capability, attemptPayload)
}

// shouldRetry decides whether another attempt against the same provider is
// worthwhile. The attempt budget and the structured error kind are the only
// inputs; error message text is never inspected.
func (re *RetryExecutor) shouldRetry(err error, attempt int) bool {
	if attempt >= re.maxRetries {
		return false
	}
	return provider.IsRetryable(err)
}
