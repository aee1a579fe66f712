package gateway

import (
	"fmt"
	"math"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"
)

// delayEnv is the whitelisted environment a retry-delay expression may read.
// Nothing else is reachable from an expression; this replaces free-form
// formula evaluation with a closed grammar over named fields.
type delayEnv struct {
	// Attempt is the 1-based attempt number that just failed.
	Attempt int `expr:"attempt"`

	// Base is the configured base delay in seconds.
	Base float64 `expr:"base"`

	// Multiplier is the configured backoff multiplier.
	Multiplier float64 `expr:"multiplier"`
}

// DelayPolicy computes the sleep between retry attempts. By default it is
// exponential backoff base * multiplier^(attempt-1); operators may override
// it with a compiled expression such as "min(30.0, base * multiplier ^
// (attempt - 1))".
type DelayPolicy struct {
	base       float64
	multiplier float64
	program    *vm.Program
	expression string
}

// NewDelayPolicy builds a policy. expression may be empty for the built-in
// backoff. A malformed expression is a configuration error.
func NewDelayPolicy(expression string, baseSeconds, multiplier float64) (*DelayPolicy, error) {
	if baseSeconds <= 0 {
		baseSeconds = 1
	}
	if multiplier <= 0 {
		multiplier = 2
	}
	p := &DelayPolicy{base: baseSeconds, multiplier: multiplier, expression: expression}
	if expression != "" {
		program, err := expr.Compile(expression, expr.Env(delayEnv{}), expr.AsFloat64())
		if err != nil {
			return nil, fmt.Errorf("compile retry delay expression %q: %w", expression, err)
		}
		p.program = program
	}
	return p, nil
}

// Delay returns the wait after the given failed attempt (1-based). Expression
// evaluation failures fall back to the built-in backoff so a bad runtime
// value can never stall or break retries.
func (p *DelayPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.program != nil {
		out, err := expr.Run(p.program, delayEnv{Attempt: attempt, Base: p.base, Multiplier: p.multiplier})
		if err == nil {
			if secs, ok := out.(float64); ok && secs >= 0 && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
				return time.Duration(secs * float64(time.Second))
			}
		}
		log.Warnf("retry delay expression %q failed (%v), using exponential backoff", p.expression, err)
	}
	secs := p.base * math.Pow(p.multiplier, float64(attempt-1))
	return time.Duration(secs * float64(time.Second))
}
