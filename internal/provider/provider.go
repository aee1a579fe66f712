// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider defines the contracts between the gateway core and the
// vendor-specific executors that perform outbound calls. A provider is an
// opaque executor advertising a set of capabilities; the gateway never speaks
// a vendor wire protocol itself.
package provider

import (
	"context"
	"sort"
)

// Domain identifies which gateway flavor a provider serves.
type Domain string

const (
	// DomainAI covers chat, completion, and embedding capabilities.
	DomainAI Domain = "ai"

	// DomainMessaging covers email, SMS, and push capabilities.
	DomainMessaging Domain = "messaging"

	// DomainPayment covers authorization, capture, and refund capabilities.
	DomainPayment Domain = "payment"
)

// Metadata describes a registered provider. It is immutable once registered;
// the gateway reads it during discovery and never mutates it.
type Metadata struct {
	// Code is the unique provider identifier (e.g., "openai", "twilio").
	Code string `json:"code" yaml:"code"`

	// Domain is the gateway flavor this provider serves.
	Domain Domain `json:"domain" yaml:"domain"`

	// Capabilities lists the logical operations this provider implements
	// (e.g., "chat", "send-email", "authorize").
	Capabilities []string `json:"capabilities" yaml:"capabilities"`

	// Priority orders providers when no explicit fallback chain applies.
	// Lower values are preferred.
	Priority int `json:"priority" yaml:"priority"`
}

// Supports reports whether the provider advertises the given capability.
func (m Metadata) Supports(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Result is the outcome of a single successful executor invocation.
type Result struct {
	// Output is the vendor response payload, already decoded.
	Output any `json:"output"`

	// Meta carries executor-specific metadata (model used, message id, ...).
	Meta map[string]any `json:"meta,omitempty"`
}

// Executor performs a single outbound call for one capability. Implementations
// must be safe for concurrent use and must honor context cancellation; the
// gateway applies a per-call timeout through ctx.
type Executor interface {
	Execute(ctx context.Context, capability string, payload map[string]any) (*Result, error)
}

// ExecFunc adapts a plain function to the Executor interface.
type ExecFunc func(ctx context.Context, capability string, payload map[string]any) (*Result, error)

// Execute implements Executor.
func (f ExecFunc) Execute(ctx context.Context, capability string, payload map[string]any) (*Result, error) {
	return f(ctx, capability, payload)
}

// SortByPriority returns a copy of the given metadata slice ordered by
// ascending priority, ties broken by code for determinism.
func SortByPriority(providers []Metadata) []Metadata {
	out := make([]Metadata, len(providers))
	copy(out, providers)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Code < out[j].Code
	})
	return out
}
