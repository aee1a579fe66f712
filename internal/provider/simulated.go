// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedExecutor is an in-process executor used by the server binary when
// a provider is configured without a real backend, and by integration tests.
// It echoes the payload back after an optional artificial latency and can be
// told to fail with a given kind and rate.
type SimulatedExecutor struct {
	mu sync.Mutex

	// Code is the provider code this executor simulates.
	Code string

	// Latency is slept (context-aware) before answering.
	Latency time.Duration

	// FailureRate in [0,1] is the probability of a failure per call.
	FailureRate float64

	// FailureKind is the kind reported when a simulated failure occurs.
	FailureKind ErrorKind

	rng   *rand.Rand
	calls int
}

// NewSimulatedExecutor creates a simulated executor for the given code.
func NewSimulatedExecutor(code string, latency time.Duration, failureRate float64, failureKind ErrorKind) *SimulatedExecutor {
	if failureKind == "" {
		failureKind = KindGeneric
	}
	return &SimulatedExecutor{
		Code:        code,
		Latency:     latency,
		FailureRate: failureRate,
		FailureKind: failureKind,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Calls returns how many times Execute has been invoked.
func (s *SimulatedExecutor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Execute implements Executor.
func (s *SimulatedExecutor) Execute(ctx context.Context, capability string, payload map[string]any) (*Result, error) {
	s.mu.Lock()
	s.calls++
	fail := s.FailureRate > 0 && s.rng.Float64() < s.FailureRate
	s.mu.Unlock()

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return nil, NewError(KindTimeout, s.Code, "simulated call cancelled", ctx.Err())
		}
	}

	if fail {
		return nil, NewError(s.FailureKind, s.Code, "simulated failure", nil)
	}

	return &Result{
		Output: map[string]any{
			"provider":   s.Code,
			"capability": capability,
			"echo":       payload,
		},
		Meta: map[string]any{"simulated": true},
	}, nil
}
