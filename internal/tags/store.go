// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import "sync"

// Store persists per-session tag state. Implementations must be safe for
// concurrent use. A missing key is not an error: LoadTags returns an empty
// slice and LoadSessionID returns "".
type Store interface {
	LoadTags(sessionKey string) ([]Tag, error)
	SaveTags(sessionKey string, tags []Tag) error
	LoadSessionID(sessionKey string) (string, error)
	SaveSessionID(sessionKey, sessionID string) error
}

// MemoryStore is an in-memory Store for tests and single-process setups
// that do not need persistence across restarts.
type MemoryStore struct {
	mu         sync.RWMutex
	tags       map[string][]Tag
	sessionIDs map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tags:       make(map[string][]Tag),
		sessionIDs: make(map[string]string),
	}
}

// LoadTags returns the stored tags for the session, or nil if none.
func (s *MemoryStore) LoadTags(sessionKey string) ([]Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.tags[sessionKey]
	out := make([]Tag, len(stored))
	copy(out, stored)
	return out, nil
}

// SaveTags stores the full tag set for the session.
func (s *MemoryStore) SaveTags(sessionKey string, tags []Tag) error {
	cp := make([]Tag, len(tags))
	copy(cp, tags)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[sessionKey] = cp
	return nil
}

// LoadSessionID returns the stored session ID, or "" if none.
func (s *MemoryStore) LoadSessionID(sessionKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionIDs[sessionKey], nil
}

// SaveSessionID stores the session ID.
func (s *MemoryStore) SaveSessionID(sessionKey, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionIDs[sessionKey] = sessionID
	return nil
}
