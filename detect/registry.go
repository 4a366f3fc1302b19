/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package detect

import (
	"sync"

	core "github.com/badu/httpcore"
)

// Registry keys ConnectionFactory instances by the protocol token they
// announce, so a connector
// built from configuration can look one up by name (e.g. "http/1.1", "tls").
type Registry struct {
	mu        sync.RWMutex
	factories map[string]core.ConnectionFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]core.ConnectionFactory)}
}

// Register associates token with f, replacing any previous registration.
func (r *Registry) Register(token string, f core.ConnectionFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[token] = f
}

// Lookup returns the factory registered for token, if any.
func (r *Registry) Lookup(token string) (core.ConnectionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[token]
	return f, ok
}

// Tokens returns every registered protocol token, for diagnostics.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.factories))
	for t := range r.factories {
		tokens = append(tokens, t)
	}
	return tokens
}
