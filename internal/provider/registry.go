// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry is the lookup service the gateway uses for discovery. List returns
// the metadata of every registered provider; Get resolves a provider code to
// its live executor.
type Registry interface {
	List() []Metadata
	Get(code string) (Executor, bool)
}

// StaticRegistry is a typed, explicit registration table built at start-up.
// Providers are registered once during wiring; lookups are lock-free reads
// after that point, but registration is still guarded for safety.
type StaticRegistry struct {
	mu        sync.RWMutex
	metadata  map[string]Metadata
	executors map[string]Executor
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		metadata:  make(map[string]Metadata),
		executors: make(map[string]Executor),
	}
}

// Register adds a provider to the table. Registering the same code twice is a
// wiring bug and returns an error rather than silently replacing the entry.
func (r *StaticRegistry) Register(meta Metadata, exec Executor) error {
	if meta.Code == "" {
		return fmt.Errorf("registry: provider code must not be empty")
	}
	if exec == nil {
		return fmt.Errorf("registry: provider %s has no executor", meta.Code)
	}
	if len(meta.Capabilities) == 0 {
		return fmt.Errorf("registry: provider %s advertises no capabilities", meta.Code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metadata[meta.Code]; exists {
		return fmt.Errorf("registry: provider %s already registered", meta.Code)
	}
	r.metadata[meta.Code] = meta
	r.executors[meta.Code] = exec

	log.Debugf("registered provider %s (domain=%s, capabilities=%v, priority=%d)",
		meta.Code, meta.Domain, meta.Capabilities, meta.Priority)
	return nil
}

// MustRegister is Register that panics on error. Intended for static wiring
// in main where a failure is a programming mistake.
func (r *StaticRegistry) MustRegister(meta Metadata, exec Executor) {
	if err := r.Register(meta, exec); err != nil {
		panic(err)
	}
}

// List returns metadata for all registered providers ordered by priority.
func (r *StaticRegistry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.metadata))
	for _, m := range r.metadata {
		out = append(out, m)
	}
	return SortByPriority(out)
}

// Get resolves a provider code to its executor.
func (r *StaticRegistry) Get(code string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[code]
	return exec, ok
}
