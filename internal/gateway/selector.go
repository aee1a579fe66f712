package gateway

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/relaygate/relaygate/internal/provider"
)

// Selector resolves a capability to a provider using the configured
// preference chains and the breaker's health view. Chains can be swapped at
// runtime (config reload) without restarting the gateway.
type Selector struct {
	mu              sync.RWMutex
	chains          map[string][]string
	defaultProvider string

	providers map[string]provider.Metadata
	ordered   []provider.Metadata
	breaker   *CircuitBreaker
}

// NewSelector creates a selector over the discovered provider set.
func NewSelector(discovered []provider.Metadata, chains map[string][]string, defaultProvider string, breaker *CircuitBreaker) *Selector {
	byCode := make(map[string]provider.Metadata, len(discovered))
	for _, m := range discovered {
		byCode[m.Code] = m
	}
	if chains == nil {
		chains = make(map[string][]string)
	}
	return &Selector{
		chains:          chains,
		defaultProvider: defaultProvider,
		providers:       byCode,
		ordered:         provider.SortByPriority(discovered),
		breaker:         breaker,
	}
}

// SelectFor picks the provider for a capability: the first chain entry that
// is discovered, supports the capability, and is healthy; then the default
// provider; then the first healthy provider overall in priority order.
func (s *Selector) SelectFor(ctx context.Context, capability string) (string, error) {
	for _, code := range s.FallbackChain(capability) {
		if s.usable(ctx, code, capability) {
			return code, nil
		}
	}

	s.mu.RLock()
	def := s.defaultProvider
	s.mu.RUnlock()
	if def != "" && s.usable(ctx, def, capability) {
		log.Debugf("capability %s falling back to default provider %s", capability, def)
		return def, nil
	}

	for _, m := range s.orderedProviders() {
		if m.Supports(capability) && s.breaker.IsHealthy(ctx, m.Code) {
			log.Debugf("capability %s falling back to first healthy provider %s", capability, m.Code)
			return m.Code, nil
		}
	}

	return "", fmt.Errorf("capability %q: %w", capability, ErrNoHealthyProvider)
}

func (s *Selector) usable(ctx context.Context, code, capability string) bool {
	s.mu.RLock()
	m, ok := s.providers[code]
	s.mu.RUnlock()
	if !ok || !m.Supports(capability) {
		return false
	}
	return s.breaker.IsHealthy(ctx, code)
}

func (s *Selector) orderedProviders() []provider.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordered
}

// FallbackChain returns a copy of the configured chain for a capability.
func (s *Selector) FallbackChain(capability string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[capability]
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

// Next returns the chain entry immediately following failedCode. The walk is
// strict and non-cyclic: a code that is last or absent in the chain has no
// successor, so no provider is ever tried twice within one dispatch.
func (s *Selector) Next(capability, failedCode string) (string, bool) {
	chain := s.FallbackChain(capability)
	for i, code := range chain {
		if code == failedCode && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}

// Known reports whether the code belongs to the discovered provider set.
func (s *Selector) Known(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.providers[code]
	return ok
}

// UpdateChains replaces the capability preference chains at runtime.
func (s *Selector) UpdateChains(chains map[string][]string) {
	if chains == nil {
		chains = make(map[string][]string)
	}
	s.mu.Lock()
	s.chains = chains
	s.mu.Unlock()
	log.Infof("fallback chains updated for %d capabilities", len(chains))
}

// Providers returns the discovered metadata in priority order.
func (s *Selector) Providers() []provider.Metadata {
	return s.orderedProviders()
}
