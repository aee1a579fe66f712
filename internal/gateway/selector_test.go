package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/relaygate/relaygate/internal/provider"
	"github.com/relaygate/relaygate/internal/store"
)

func newTestSelector(t *testing.T, chains map[string][]string, defaultProvider string) (*Selector, *CircuitBreaker) {
	t.Helper()
	discovered := []provider.Metadata{
		{Code: "openai", Domain: provider.DomainAI, Capabilities: []string{"chat", "embedding"}, Priority: 1},
		{Code: "anthropic", Domain: provider.DomainAI, Capabilities: []string{"chat"}, Priority: 2},
		{Code: "mistral", Domain: provider.DomainAI, Capabilities: []string{"chat", "embedding"}, Priority: 3},
	}
	breaker := NewCircuitBreaker(store.NewMemoryStore(), 1, 300*time.Second)
	return NewSelector(discovered, chains, defaultProvider, breaker), breaker
}

func TestSelector_SelectFor(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		chains     map[string][]string
		def        string
		unhealthy  []string
		capability string
		want       string
		wantErr    error
	}{
		{
			name:       "first chain entry when healthy",
			chains:     map[string][]string{"chat": {"openai", "anthropic"}},
			capability: "chat",
			want:       "openai",
		},
		{
			name:       "skips unhealthy chain entries",
			chains:     map[string][]string{"chat": {"openai", "anthropic"}},
			unhealthy:  []string{"openai"},
			capability: "chat",
			want:       "anthropic",
		},
		{
			name:       "skips undiscovered chain entries",
			chains:     map[string][]string{"chat": {"ghost", "anthropic"}},
			capability: "chat",
			want:       "anthropic",
		},
		{
			name:       "skips chain entries lacking the capability",
			chains:     map[string][]string{"embedding": {"anthropic", "mistral"}},
			capability: "embedding",
			want:       "mistral",
		},
		{
			name:       "default provider when chain exhausted",
			chains:     map[string][]string{"chat": {"ghost"}},
			def:        "anthropic",
			capability: "chat",
			want:       "anthropic",
		},
		{
			name:       "first healthy overall by priority",
			chains:     map[string][]string{},
			capability: "chat",
			want:       "openai",
		},
		{
			name:       "no healthy provider",
			chains:     map[string][]string{"chat": {"openai", "anthropic", "mistral"}},
			unhealthy:  []string{"openai", "anthropic", "mistral"},
			capability: "chat",
			wantErr:    ErrNoHealthyProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, breaker := newTestSelector(t, tt.chains, tt.def)
			for _, code := range tt.unhealthy {
				_ = breaker.RecordFailure(ctx, code)
			}

			got, err := sel.SelectFor(ctx, tt.capability)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSelector_NextIsStrictAndNonCyclic(t *testing.T) {
	sel, _ := newTestSelector(t, map[string][]string{
		"chat": {"openai", "anthropic", "mistral"},
	}, "")

	next, ok := sel.Next("chat", "openai")
	if !ok || next != "anthropic" {
		t.Fatalf("after openai: (%s, %v)", next, ok)
	}
	next, ok = sel.Next("chat", "anthropic")
	if !ok || next != "mistral" {
		t.Fatalf("after anthropic: (%s, %v)", next, ok)
	}
	if _, ok := sel.Next("chat", "mistral"); ok {
		t.Fatal("last entry must have no successor")
	}
	if _, ok := sel.Next("chat", "ghost"); ok {
		t.Fatal("absent entry must have no successor")
	}
	if _, ok := sel.Next("unknown-capability", "openai"); ok {
		t.Fatal("unknown capability must have no successor")
	}
}

func TestSelector_UpdateChains(t *testing.T) {
	sel, _ := newTestSelector(t, map[string][]string{
		"chat": {"openai", "anthropic"},
	}, "")

	sel.UpdateChains(map[string][]string{"chat": {"mistral", "openai"}})

	got := sel.FallbackChain("chat")
	if len(got) != 2 || got[0] != "mistral" || got[1] != "openai" {
		t.Fatalf("chain after update: %v", got)
	}
}
