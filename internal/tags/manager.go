// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/metrics"
)

// Manager holds the authoritative signal set for one session: tags loaded
// from the durable store, automatic tags derived from the environment
// snapshot at construction, and tags assigned explicitly afterwards.
// Identity-scoped tags (for authenticated users) are layered on top via
// SetUserTags and are not persisted here.
//
// All methods are safe for concurrent use. Store failures are logged and
// the manager continues with in-memory state for that operation; no error
// ever reaches the caller.
type Manager struct {
	mu          sync.RWMutex
	key         string
	env         Environment
	store       Store
	syncer      SessionSyncer
	logger      zerolog.Logger
	now         func() time.Time
	userTags    []Tag
	sessionTags []Tag
	sessionID   string
	createdAt   time.Time
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithSyncer installs the session sync client.
func WithSyncer(s SessionSyncer) ManagerOption {
	return func(m *Manager) { m.syncer = s }
}

// WithManagerLogger replaces the default component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithManagerLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithNowFunc replaces the time source, for tests.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager for the given session key: persisted tags
// are loaded first, then automatic detection runs against the environment
// snapshot. Detection is idempotent because re-adding an existing tag name
// is a no-op.
func NewManager(sessionKey string, env Environment, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		key:    sessionKey,
		env:    env,
		store:  store,
		logger: logging.With().Str("component", "tags").Str("session", sessionKey).Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.createdAt = m.now()

	stored, err := store.LoadTags(sessionKey)
	if err != nil {
		metrics.TagStoreErrors.Inc()
		m.logger.Error().Err(err).Msg("loading session tags failed, continuing in memory")
	} else {
		m.sessionTags = stored
	}

	for _, tag := range DeriveTags(env) {
		m.AddTag(tag)
	}
	return m
}

// AddTag inserts a tag unless one with the same name already exists, then
// persists the updated session set. Duplicate names are a silent no-op.
func (m *Manager) AddTag(tag Tag) {
	if tag.Name == "" {
		return
	}
	if tag.AssignedAt.IsZero() {
		tag.AssignedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasTagLocked(tag.Name) {
		return
	}
	m.sessionTags = append(m.sessionTags, tag)
	m.persistLocked()
	metrics.TagAssignments.WithLabelValues(string(tag.Source)).Inc()
}

// AddQuestionnaireTag adds one questionnaire-sourced tag per name, with
// the question ID as the tag value.
func (m *Manager) AddQuestionnaireTag(questionID string, names []string) {
	for _, name := range names {
		m.AddTag(Tag{Name: name, Source: SourceQuestionnaire, Value: questionID})
	}
}

// AddBehavioralTag adds a behavior-sourced tag named by uppercasing and
// prefixing the behavior string, e.g. "content_click" -> BEHAVIOR_CONTENT_CLICK.
func (m *Manager) AddBehavioralTag(behavior, context string) {
	m.AddTag(Tag{
		Name:   "BEHAVIOR_" + strings.ToUpper(behavior),
		Source: SourceBehavior,
		Value:  context,
	})
}

// SetUserTags replaces the identity-scoped tag set for an authenticated
// user. These layer in front of the session tags and are not persisted by
// the manager.
func (m *Manager) SetUserTags(ts []Tag) {
	cp := make([]Tag, len(ts))
	copy(cp, ts)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userTags = cp
}

// AllTags returns the identity-scoped tags followed by the session tags.
func (m *Manager) AllTags() []Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tag, 0, len(m.userTags)+len(m.sessionTags))
	out = append(out, m.userTags...)
	out = append(out, m.sessionTags...)
	return out
}

// TagNames returns the names of all current tags.
func (m *Manager) TagNames() []string {
	return Names(m.AllTags())
}

// TagsBySource returns all tags assigned from the given source.
func (m *Manager) TagsBySource(source Source) []Tag {
	var out []Tag
	for _, t := range m.AllTags() {
		if t.Source == source {
			out = append(out, t)
		}
	}
	return out
}

// HasTag reports whether a tag with the given name exists.
func (m *Manager) HasTag(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasTagLocked(name)
}

// MatchScore returns the fraction of contentTags present in the current
// tag set. An empty input scores 0.
func (m *Manager) MatchScore(contentTags []string) float64 {
	if len(contentTags) == 0 {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := 0
	for _, name := range contentTags {
		if m.hasTagLocked(name) {
			matches++
		}
	}
	return float64(matches) / float64(len(contentTags))
}

// ClearSessionTags removes all session-scoped tags and persists the empty
// set. Identity-scoped tags are untouched.
func (m *Manager) ClearSessionTags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionTags = nil
	m.persistLocked()
}

// SessionID returns the stable session identifier, creating and persisting
// one on first access.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionIDLocked()
}

// SessionData builds the synchronization snapshot for this session.
func (m *Manager) SessionData() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]Tag, len(m.sessionTags))
	copy(tags, m.sessionTags)

	return SessionSnapshot{
		SessionID: m.sessionIDLocked(),
		Tags:      tags,
		Events: EventCounts{
			Clicks:    map[string]int{},
			Views:     map[string]int{},
			Purchases: map[string]int{},
		},
		CreatedAt:    m.createdAt,
		LastActiveAt: m.now(),
		UTMParams:    m.env.UTM(),
		DeviceInfo: DeviceInfo{
			UserAgent:  m.env.UserAgent,
			Platform:   m.env.Platform,
			IsMobile:   m.env.IsMobile(),
			ScreenSize: m.env.ScreenSize,
		},
		LocationInfo: LocationInfo{Timezone: m.env.Timezone},
	}
}

// SyncSessionData pushes the snapshot to the session sync endpoint.
// Best-effort: failures are logged and counted, never returned.
func (m *Manager) SyncSessionData(ctx context.Context) {
	if m.syncer == nil {
		return
	}

	snapshot := m.SessionData()
	if err := m.syncer.SyncSession(ctx, snapshot); err != nil {
		metrics.SessionSyncs.WithLabelValues("failure").Inc()
		m.logger.Warn().Err(err).Msg("session sync failed")
		return
	}
	metrics.SessionSyncs.WithLabelValues("success").Inc()
	m.logger.Debug().Str("session_id", snapshot.SessionID).Msg("session synced")
}

// hasTagLocked checks both identity and session tags. Must be called with
// mu held (read or write).
func (m *Manager) hasTagLocked(name string) bool {
	for _, t := range m.userTags {
		if t.Name == name {
			return true
		}
	}
	for _, t := range m.sessionTags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// persistLocked writes the session tag set through the store. Must be
// called with mu held.
func (m *Manager) persistLocked() {
	if err := m.store.SaveTags(m.key, m.sessionTags); err != nil {
		metrics.TagStoreErrors.Inc()
		m.logger.Error().Err(err).Msg("persisting session tags failed, continuing in memory")
	}
}

// sessionIDLocked lazily loads or creates the session ID. Must be called
// with mu held.
func (m *Manager) sessionIDLocked() string {
	if m.sessionID != "" {
		return m.sessionID
	}

	stored, err := m.store.LoadSessionID(m.key)
	if err != nil {
		metrics.TagStoreErrors.Inc()
		m.logger.Error().Err(err).Msg("loading session id failed")
	}
	if stored != "" {
		m.sessionID = stored
		return m.sessionID
	}

	m.sessionID = newSessionID(m.now())
	if err := m.store.SaveSessionID(m.key, m.sessionID); err != nil {
		metrics.TagStoreErrors.Inc()
		m.logger.Error().Err(err).Msg("persisting session id failed")
	}
	return m.sessionID
}

// newSessionID generates a session identifier with a millisecond time
// component and a random suffix.
func newSessionID(now time.Time) string {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return "session_" + now.UTC().Format("20060102150405") + "_" + suffix
}
