// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import (
	"context"
	"time"
)

// SessionSnapshot is the synchronization payload pushed to the session
// sync endpoint. Event counts are filled server-side by the behavioral
// record store; the snapshot carries an empty placeholder.
type SessionSnapshot struct {
	SessionID    string       `json:"sessionId"`
	Tags         []Tag        `json:"tags"`
	Events       EventCounts  `json:"events"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
	UTMParams    UTMParams    `json:"utmParams"`
	DeviceInfo   DeviceInfo   `json:"deviceInfo"`
	LocationInfo LocationInfo `json:"locationInfo"`
}

// EventCounts aggregates per-product interaction counts.
type EventCounts struct {
	Clicks    map[string]int `json:"clicks"`
	Views     map[string]int `json:"views"`
	Purchases map[string]int `json:"purchases"`
}

// UTMParams are the campaign parameters captured at session start.
type UTMParams struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// DeviceInfo describes the client device.
type DeviceInfo struct {
	UserAgent  string `json:"userAgent"`
	Platform   string `json:"platform"`
	IsMobile   bool   `json:"isMobile"`
	ScreenSize string `json:"screenSize,omitempty"`
}

// LocationInfo carries only coarse, privacy-safe location context.
type LocationInfo struct {
	Timezone string `json:"timezone,omitempty"`
}

// SessionSyncer pushes a session snapshot to the sync endpoint.
// Implemented by the ingestion client.
type SessionSyncer interface {
	SyncSession(ctx context.Context, snapshot SessionSnapshot) error
}
