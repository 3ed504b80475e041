// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package events defines the canonical interaction event model shared by
// the batching engine, the ingestion client, and the HTTP API.
package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the type of user interaction.
type Kind string

// Interaction kinds. Views and hovers are aggregable (safe to coalesce into
// one dispatch); clicks and purchases are dispatched individually in strict
// submission order.
const (
	KindView     Kind = "view"
	KindHover    Kind = "hover"
	KindClick    Kind = "click"
	KindPurchase Kind = "purchase"
)

// PlaceholderProduct is the sentinel used by upstream callers for an
// unresolved product reference. Events carrying it are invalid.
const PlaceholderProduct = "N/A"

// OccurredAtLayout is the wire format for event timestamps.
const OccurredAtLayout = "2006-01-02:15:04:05"

// Valid reports whether k is a known interaction kind.
func (k Kind) Valid() bool {
	switch k {
	case KindView, KindHover, KindClick, KindPurchase:
		return true
	}
	return false
}

// Aggregable reports whether events of this kind may be coalesced with
// others into a single dispatch.
func (k Kind) Aggregable() bool {
	return k == KindView || k == KindHover
}

// InteractionEvent represents a single tracked user interaction with a
// product. The ID is unique per submission; deduplication is keyed on
// (kind, productName, productId), not on ID.
type InteractionEvent struct {
	ID          string `json:"id"`
	ProductName string `json:"productName,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	OccurredAt  string `json:"occurredAt"`
	Kind        Kind   `json:"kind"`
}

// New creates a fully stamped event for the given interaction. The ID
// embeds the dedup key plus a time and random suffix so collisions across
// rapid submissions are not possible.
func New(kind Kind, productName, productID string, now time.Time) InteractionEvent {
	suffix := strings.SplitN(uuid.New().String(), "-", 2)[0]
	return InteractionEvent{
		ID:          string(kind) + "-" + productName + "-" + productID + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix,
		ProductName: productName,
		ProductID:   productID,
		OccurredAt:  now.Format(OccurredAtLayout),
		Kind:        kind,
	}
}

// Validate checks that the event references a real product and carries a
// known kind. Events failing validation are dropped before queueing.
func (e *InteractionEvent) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: "unknown interaction kind"}
	}
	if e.ProductName == "" || e.ProductName == PlaceholderProduct {
		return &ValidationError{Field: "productName", Message: "required"}
	}
	if e.ProductID == "" || e.ProductID == PlaceholderProduct {
		return &ValidationError{Field: "productId", Message: "required"}
	}
	return nil
}

// DedupKey returns the tuple used for near-duplicate suppression.
func (e *InteractionEvent) DedupKey() string {
	return string(e.Kind) + "-" + e.ProductName + "-" + e.ProductID
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
