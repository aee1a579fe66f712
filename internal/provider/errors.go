// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies executor failures. The retry executor keys its
// decisions off the kind, never off the error message text.
type ErrorKind string

const (
	// KindAuth marks credential or permission failures. Never retried.
	KindAuth ErrorKind = "auth"

	// KindQuota marks vendor quota or billing exhaustion. Never retried.
	KindQuota ErrorKind = "quota"

	// KindTimeout marks a call that exceeded its deadline. Retried.
	KindTimeout ErrorKind = "timeout"

	// KindGeneric marks any other provider-reported failure. Retried.
	KindGeneric ErrorKind = "generic"
)

// Error is a typed failure reported by an executor.
type Error struct {
	// Kind classifies the failure for retry and fallback decisions.
	Kind ErrorKind

	// Provider is the code of the provider that failed.
	Provider string

	// Message is a human-readable description of the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s (%s): %v", e.Provider, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed provider error.
func NewError(kind ErrorKind, providerCode, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: providerCode, Message: message, Err: cause}
}

// KindOf extracts the error kind from err. Context deadline errors map to
// KindTimeout so that executors which simply return ctx.Err() are accounted
// as timeouts. Anything else is KindGeneric.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindGeneric
}

// IsRetryable reports whether the failure kind permits another attempt
// against the same provider. Auth and quota failures are terminal for the
// provider; timeouts and generic failures are worth retrying.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindQuota:
		return false
	default:
		return true
	}
}
