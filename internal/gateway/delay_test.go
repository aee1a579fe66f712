package gateway

import (
	"testing"
	"time"
)

func TestDelayPolicy_DefaultExponentialBackoff(t *testing.T) {
	p, err := NewDelayPolicy("", 1, 2)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1 * time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 0, want: 1 * time.Second}, // clamped to attempt 1
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayPolicy_Expression(t *testing.T) {
	p, err := NewDelayPolicy("min(3.0, base * multiplier ^ (attempt - 1))", 1, 2)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	if got := p.Delay(1); got != 1*time.Second {
		t.Errorf("Delay(1) = %v", got)
	}
	if got := p.Delay(2); got != 2*time.Second {
		t.Errorf("Delay(2) = %v", got)
	}
	// Capped by the expression.
	if got := p.Delay(5); got != 3*time.Second {
		t.Errorf("Delay(5) = %v, want 3s", got)
	}
}

func TestDelayPolicy_RejectsMalformedExpression(t *testing.T) {
	if _, err := NewDelayPolicy("attempt +", 1, 2); err == nil {
		t.Fatal("malformed expression must be a configuration error")
	}
	// Identifiers outside the whitelisted environment must not compile.
	if _, err := NewDelayPolicy("os_exit(1)", 1, 2); err == nil {
		t.Fatal("unknown identifiers must not compile")
	}
}
