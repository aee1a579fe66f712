package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relaygate/relaygate/internal/store"
)

// BreakerState is the circuit state of one provider.
type BreakerState string

const (
	// StateClosed is the healthy state: calls pass through.
	StateClosed BreakerState = "closed"

	// StateOpen rejects all calls without an outbound attempt.
	StateOpen BreakerState = "open"

	// StateHalfOpen lets a trial call through after the open timeout.
	StateHalfOpen BreakerState = "half_open"
)

// Health is the persisted per-provider breaker record. It lives in the shared
// store, never in a per-call object, so failures accumulate across requests
// and processes.
type Health struct {
	Status        BreakerState `json:"status"`
	FailureCount  int          `json:"failure_count"`
	LastFailureAt *time.Time   `json:"last_failure_at,omitempty"`
	LastSuccessAt *time.Time   `json:"last_success_at,omitempty"`
	OpenedAt      *time.Time   `json:"opened_at,omitempty"`

	// TrialStartedAt marks the in-flight half-open trial. While set, further
	// calls are rejected until the trial outcome lands or the trial itself
	// times out.
	TrialStartedAt *time.Time `json:"trial_started_at,omitempty"`
}

// CircuitBreaker is a per-provider failure-count state machine with timed
// recovery. State is mutated only through Allow, RecordSuccess, and
// RecordFailure, each an atomic read-modify-write on the shared store.
type CircuitBreaker struct {
	store     store.Store
	threshold int
	timeout   time.Duration
	keyPrefix string
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker. threshold is the consecutive failure
// count that opens the circuit; timeout is how long an open circuit rejects
// calls before permitting a half-open trial.
func NewCircuitBreaker(st store.Store, threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &CircuitBreaker{
		store:     st,
		threshold: threshold,
		timeout:   timeout,
		keyPrefix: "health:",
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (cb *CircuitBreaker) SetClock(now func() time.Time) { cb.now = now }

func (cb *CircuitBreaker) key(code string) string { return cb.keyPrefix + code }

func decodeHealth(raw string, exists bool) Health {
	h := Health{Status: StateClosed}
	if !exists || raw == "" {
		return h
	}
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		// A corrupt record is treated as fresh; the breaker re-learns.
		return Health{Status: StateClosed}
	}
	if h.Status == "" {
		h.Status = StateClosed
	}
	return h
}

func encodeHealth(h Health) string {
	b, _ := json.Marshal(h)
	return string(b)
}

// Allow gates a call to the provider. Open circuits reject with
// ErrCircuitOpen until the timeout has elapsed since OpenedAt; the call that
// performs the Open to HalfOpen transition is the single trial, and every
// other call is rejected until the trial outcome is recorded. A trial that
// never reports back (a crashed process) expires after the open timeout, at
// which point the next call claims a fresh trial.
func (cb *CircuitBreaker) Allow(ctx context.Context, code string) error {
	var rejected bool
	err := cb.store.Update(ctx, cb.key(code), 0, func(raw string, exists bool) (string, error) {
		h := decodeHealth(raw, exists)
		now := cb.now()
		switch h.Status {
		case StateOpen:
			if h.OpenedAt != nil && now.Sub(*h.OpenedAt) >= cb.timeout {
				h.Status = StateHalfOpen
				h.TrialStartedAt = &now
				log.Debugf("circuit half-open for provider %s after %s", code, cb.timeout)
			} else {
				rejected = true
			}
		case StateHalfOpen:
			if h.TrialStartedAt != nil && now.Sub(*h.TrialStartedAt) < cb.timeout {
				rejected = true
			} else {
				h.TrialStartedAt = &now
			}
		}
		return encodeHealth(h), nil
	})
	if err != nil {
		return fmt.Errorf("circuit check for %s: %w", code, err)
	}
	if rejected {
		return fmt.Errorf("provider %s: %w", code, ErrCircuitOpen)
	}
	return nil
}

// RecordSuccess marks the provider healthy: the circuit closes and the
// failure count resets to zero. This is the only transition that resets
// FailureCount.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, code string) error {
	return cb.store.Update(ctx, cb.key(code), 0, func(raw string, exists bool) (string, error) {
		h := decodeHealth(raw, exists)
		now := cb.now()
		if h.Status != StateClosed {
			log.Infof("circuit closed for provider %s after success", code)
		}
		h.Status = StateClosed
		h.FailureCount = 0
		h.LastSuccessAt = &now
		h.OpenedAt = nil
		h.TrialStartedAt = nil
		return encodeHealth(h), nil
	})
}

// RecordFailure registers an unhealthy outcome. A half-open trial failure
// reopens the circuit with a fresh OpenedAt; a closed-circuit failure
// increments the count and opens the circuit when it reaches the threshold.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, code string) error {
	return cb.store.Update(ctx, cb.key(code), 0, func(raw string, exists bool) (string, error) {
		h := decodeHealth(raw, exists)
		now := cb.now()
		h.LastFailureAt = &now

		switch h.Status {
		case StateHalfOpen:
			h.Status = StateOpen
			h.OpenedAt = &now
			h.TrialStartedAt = nil
			log.Warnf("circuit reopened for provider %s: trial call failed", code)
		case StateOpen:
			// Already open; nothing to count.
		default:
			h.FailureCount++
			if h.FailureCount >= cb.threshold {
				h.Status = StateOpen
				h.OpenedAt = &now
				log.Warnf("circuit opened for provider %s after %d consecutive failures", code, h.FailureCount)
			}
		}
		return encodeHealth(h), nil
	})
}

// IsHealthy reports whether the selector may pick this provider. Closed and
// half-open circuits count as usable; the per-call Allow check still governs
// the actual attempt.
func (cb *CircuitBreaker) IsHealthy(ctx context.Context, code string) bool {
	h, err := cb.Health(ctx, code)
	if err != nil {
		// Store trouble should not ground every provider.
		return true
	}
	return h.Status == StateClosed || h.Status == StateHalfOpen
}

// Health returns the persisted record for a provider. Unknown providers
// report a fresh closed state.
func (cb *CircuitBreaker) Health(ctx context.Context, code string) (Health, error) {
	raw, ok, err := cb.store.Get(ctx, cb.key(code))
	if err != nil {
		return Health{}, fmt.Errorf("circuit state for %s: %w", code, err)
	}
	return decodeHealth(raw, ok), nil
}
