// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for BadgerDB storage.
const (
	tagsKeyPrefix      = "tags:"
	sessionIDKeyPrefix = "sid:"
)

// BadgerStore implements Store using BadgerDB for durable per-session
// persistence across restarts.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a BadgerDB-backed tag store. The caller owns the
// database handle and its lifecycle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// LoadTags returns the stored tags for the session, or nil if none.
func (s *BadgerStore) LoadTags(sessionKey string) ([]Tag, error) {
	var tags []Tag

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tagsKeyPrefix + sessionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get tags: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tags)
		})
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// SaveTags stores the full tag set for the session.
func (s *BadgerStore) SaveTags(sessionKey string, tags []Tag) error {
	data, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tagsKeyPrefix+sessionKey), data)
	})
}

// LoadSessionID returns the stored session ID, or "" if none.
func (s *BadgerStore) LoadSessionID(sessionKey string) (string, error) {
	var id string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionIDKeyPrefix + sessionKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get session id: %w", err)
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// SaveSessionID stores the session ID.
func (s *BadgerStore) SaveSessionID(sessionKey, sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionIDKeyPrefix+sessionKey), []byte(sessionID))
	})
}
