// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package content fetches personalizable content assets from the content
// service and reports content interactions back to it.
package content

import (
	"time"

	"github.com/platewise/engage/internal/tags"
)

// Content categories served by the content service.
const (
	CategoryBanners           = "banners"
	CategoryFlyingBanners     = "flyingBanners"
	CategoryProductHighlights = "productHighlights"
	CategoryTestimonials      = "testimonials"
	CategoryFeatures          = "features"
	CategoryDelivery          = "entrega"
	CategoryNewsletter        = "newsletter"
	CategoryCatalog           = "catalog"
)

// Categories lists every known content category.
var Categories = []string{
	CategoryBanners,
	CategoryFlyingBanners,
	CategoryProductHighlights,
	CategoryTestimonials,
	CategoryFeatures,
	CategoryDelivery,
	CategoryNewsletter,
	CategoryCatalog,
}

// Asset is one personalizable content item. Tags drive relevance scoring;
// Priority breaks score ties; the validity window gates eligibility.
type Asset struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Tags       []string       `json:"tags"`
	Priority   int            `json:"priority"`
	IsActive   bool           `json:"isActive"`
	ValidFrom  *time.Time     `json:"validFrom,omitempty"`
	ValidUntil *time.Time     `json:"validUntil,omitempty"`
	Content    map[string]any `json:"content"`
}

// Eligible reports whether the asset may be shown at the given instant:
// active, and inside its validity window when one is set.
func (a Asset) Eligible(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ValidFrom != nil && now.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidUntil != nil && now.After(*a.ValidUntil) {
		return false
	}
	return true
}

// Interaction is a content engagement report pushed to the analytics
// endpoint, carrying the session's full tag set at the moment of the
// interaction. Delivery is best-effort.
type Interaction struct {
	ContentID       string     `json:"contentId"`
	InteractionType string     `json:"interactionType"`
	OccurredAt      time.Time  `json:"timestamp"`
	UserTags        []tags.Tag `json:"userTags"`
}
