package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited indicates the fixed-window limit for a provider was hit.
	// The dispatch falls back to the next candidate instead of retrying.
	ErrRateLimited = errors.New("gateway: provider rate limit exceeded")

	// ErrCircuitOpen indicates the provider's breaker is open; no outbound
	// call was attempted. Triggers fallback.
	ErrCircuitOpen = errors.New("gateway: provider circuit open")

	// ErrNoHealthyProvider indicates no candidate remains for a capability.
	ErrNoHealthyProvider = errors.New("gateway: no healthy provider for capability")

	// ErrUnknownProvider indicates a provider code (hint or chain entry) that
	// the registry does not know.
	ErrUnknownProvider = errors.New("gateway: unknown provider")
)

// DispatchError wraps the last underlying failure after every fallback
// candidate was exhausted. It is the only error a caller normally observes
// from Dispatch besides ErrNoHealthyProvider.
type DispatchError struct {
	// Capability is the logical operation that failed.
	Capability string

	// Tried lists the provider codes attempted, in order.
	Tried []string

	// Err is the failure from the last attempted provider.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("gateway: dispatch %q failed: %v", e.Capability, e.Err)
	}
	return fmt.Sprintf("gateway: dispatch %q failed after trying [%s]: %v",
		e.Capability, strings.Join(e.Tried, ", "), e.Err)
}

// Unwrap returns the last underlying failure.
func (e *DispatchError) Unwrap() error { return e.Err }
