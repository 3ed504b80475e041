// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package tags maintains the behavioral and contextual signal set used for
// personalization. Tags are derived automatically from the client
// environment at session start, assigned explicitly from questionnaires
// and observed behavior, and persisted per session in a durable store.
package tags

import "time"

// Source identifies how a tag was assigned.
type Source string

// Tag sources.
const (
	SourceCampaign      Source = "campaign"
	SourceDevice        Source = "device"
	SourceTime          Source = "time"
	SourceLocation      Source = "location"
	SourceQuestionnaire Source = "questionnaire"
	SourceBehavior      Source = "behavior"
)

// Tag is a single behavioral or contextual signal. Within one session a
// tag name is unique: a second assignment of an existing name is a no-op.
type Tag struct {
	Name       string    `json:"name"`
	Source     Source    `json:"source"`
	Value      string    `json:"value,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Names extracts the tag names, preserving order.
func Names(ts []Tag) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}
