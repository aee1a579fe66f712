// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store provides the shared key/value store the gateway keeps its
// cross-call state in: circuit breaker health, rate-limit windows, and the
// response cache. Both rate and health state live in the same store so
// behavior is consistent regardless of process lifetime; a short-lived
// process per request works as long as the store outlives it.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUpdateConflict is returned by Update when the optimistic transaction
// lost against a concurrent writer and retries were exhausted.
var ErrUpdateConflict = errors.New("store: update conflict")

// UpdateFunc transforms the current value of a key. The exists flag is false
// when the key is absent or expired. Returning an error aborts the update and
// propagates the error to the caller unchanged.
type UpdateFunc func(current string, exists bool) (string, error)

// Store is the shared state contract. Values are opaque strings (the gateway
// stores JSON documents). A zero ttl means no expiry.
//
// Update must apply fn atomically per key with read-modify-write semantics:
// two concurrent Updates of the same key must serialize, so counters never
// lose increments. Implementations may serialize more broadly than per key;
// the memory store guards the whole map with one mutex, the Redis store
// contends only on the watched key.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
}
