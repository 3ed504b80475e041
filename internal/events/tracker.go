// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package events

import "time"

// Submitter accepts interaction events for batching. Implemented by
// batcher.Engine.
type Submitter interface {
	Submit(ev InteractionEvent)
}

// Tracker is the convenience facade over the batching engine: it stamps
// IDs and timestamps so callers only name the product they interacted
// with.
type Tracker struct {
	submitter Submitter
	now       func() time.Time
}

// NewTracker creates a tracker feeding the given submitter.
func NewTracker(submitter Submitter) *Tracker {
	return &Tracker{submitter: submitter, now: time.Now}
}

// WithNow replaces the time source, for tests.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Track stamps and submits one interaction of the given kind.
func (t *Tracker) Track(kind Kind, productName, productID string) {
	t.submitter.Submit(New(kind, productName, productID, t.now()))
}

// TrackView records a product view.
func (t *Tracker) TrackView(productName, productID string) {
	t.Track(KindView, productName, productID)
}

// TrackHover records a product hover.
func (t *Tracker) TrackHover(productName, productID string) {
	t.Track(KindHover, productName, productID)
}

// TrackClick records a product click.
func (t *Tracker) TrackClick(productName, productID string) {
	t.Track(KindClick, productName, productID)
}

// TrackPurchase records a purchase.
func (t *Tracker) TrackPurchase(productName, productID string) {
	t.Track(KindPurchase, productName, productID)
}
