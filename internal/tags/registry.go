// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import "sync"

// Registry hands out one Manager per session key. Managers are created on
// first use with the environment snapshot supplied by the caller; later
// lookups for the same key reuse the existing manager and ignore the
// snapshot argument.
type Registry struct {
	mu       sync.Mutex
	store    Store
	opts     []ManagerOption
	managers map[string]*Manager
}

// NewRegistry creates a registry backed by the given store. The options
// are applied to every manager it constructs.
func NewRegistry(store Store, opts ...ManagerOption) *Registry {
	return &Registry{
		store:    store,
		opts:     opts,
		managers: make(map[string]*Manager),
	}
}

// Manager returns the manager for the session key, creating it from the
// environment snapshot if this is the first lookup.
func (r *Registry) Manager(sessionKey string, env Environment) *Manager {
	r.mu.Lock()
	if m, ok := r.managers[sessionKey]; ok {
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	// Construct outside the lock: NewManager touches the store and may
	// block. A racing lookup for the same key keeps the first one stored.
	m := NewManager(sessionKey, env, r.store, r.opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.managers[sessionKey]; ok {
		return existing
	}
	r.managers[sessionKey] = m
	return m
}

// Lookup returns the manager for the session key if one exists.
func (r *Registry) Lookup(sessionKey string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.managers[sessionKey]
	return m, ok
}

// Evict drops the manager for the session key. Persisted state remains in
// the store and is reloaded on the next lookup.
func (r *Registry) Evict(sessionKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.managers, sessionKey)
}

// Len reports the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
