// Package domain provides capability-specific convenience wrappers over the
// generic gateway core. Each wrapper only shapes the payload for its flavor
// and delegates to Dispatch; all resilience behavior lives in the core.
package domain

import (
	"context"

	"github.com/relaygate/relaygate/internal/gateway"
)

// AI capability names.
const (
	CapabilityChat      = "chat"
	CapabilityComplete  = "complete"
	CapabilityEmbedding = "embedding"
)

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AI wraps a gateway configured for the AI domain.
type AI struct {
	gw *gateway.Gateway
}

// NewAI creates the AI wrapper.
func NewAI(gw *gateway.Gateway) *AI { return &AI{gw: gw} }

// Gateway exposes the underlying gateway for management surfaces.
func (a *AI) Gateway() *gateway.Gateway { return a.gw }

// Chat dispatches a chat completion. model may be empty to let the provider
// pick its default; providerHint may name a specific vendor.
func (a *AI) Chat(ctx context.Context, model string, messages []ChatMessage, providerHint string) (*gateway.Result, error) {
	msgs := make([]map[string]any, len(messages))
	for i, m := range messages {
		msgs[i] = map[string]any{"role": m.Role, "content": m.Content}
	}
	payload := map[string]any{"messages": msgs}
	if model != "" {
		payload["model"] = model
	}
	return a.gw.Dispatch(ctx, CapabilityChat, payload, providerHint)
}

// Complete dispatches a plain text completion.
func (a *AI) Complete(ctx context.Context, model, prompt string, providerHint string) (*gateway.Result, error) {
	payload := map[string]any{"prompt": prompt}
	if model != "" {
		payload["model"] = model
	}
	return a.gw.Dispatch(ctx, CapabilityComplete, payload, providerHint)
}

// Embedding dispatches an embedding computation. Embedding is deterministic
// for a given input, which makes it a natural cacheable capability.
func (a *AI) Embedding(ctx context.Context, model string, input []string, providerHint string) (*gateway.Result, error) {
	payload := map[string]any{"input": input}
	if model != "" {
		payload["model"] = model
	}
	return a.gw.Dispatch(ctx, CapabilityEmbedding, payload, providerHint)
}
