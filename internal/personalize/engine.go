// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package personalize

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/metrics"
)

// recommendationLimit caps how many related assets are suggested.
const recommendationLimit = 3

// DefaultLimits is the per-category result cap applied when no explicit
// limit is configured or requested.
var DefaultLimits = map[string]int{
	content.CategoryBanners:           3,
	content.CategoryProductHighlights: 6,
	content.CategoryTestimonials:      3,
	content.CategoryFeatures:          4,
}

// ScoredAsset pairs an asset with its relevance score for the requesting
// session.
type ScoredAsset struct {
	content.Asset
	RelevanceScore float64 `json:"relevanceScore"`
}

// Config holds personalization tuning knobs.
type Config struct {
	Limits   map[string]int `koanf:"limits"`
	Taxonomy Taxonomy       `koanf:"taxonomy"`
}

// Option customizes engine construction.
type Option func(*Engine)

// WithNowFunc replaces the time source, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger replaces the default component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine ranks content for sessions. It degrades gracefully: a failed
// content fetch yields an empty result, never an error, so pages render
// unpersonalized rather than broken.
//
// Thread safety: safe for concurrent use; all state is read-only after
// construction.
type Engine struct {
	fetcher  content.Fetcher
	reporter content.Reporter
	taxonomy Taxonomy
	limits   map[string]int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine creates a personalization engine. A nil taxonomy falls back
// to DefaultTaxonomy; missing limits fall back to DefaultLimits.
func NewEngine(fetcher content.Fetcher, reporter content.Reporter, cfg Config, opts ...Option) *Engine {
	taxonomy := cfg.Taxonomy
	if taxonomy == nil {
		taxonomy = DefaultTaxonomy()
	}

	limits := make(map[string]int, len(DefaultLimits))
	for category, limit := range DefaultLimits {
		limits[category] = limit
	}
	for category, limit := range cfg.Limits {
		limits[category] = limit
	}

	e := &Engine{
		fetcher:  fetcher,
		reporter: reporter,
		taxonomy: taxonomy,
		limits:   limits,
		logger:   logging.With().Str("component", "personalize").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CategoryContent returns the eligible assets of a category ranked by
// relevance to the user's tags, capped at the category limit (or the
// requested limit when positive). A content service failure returns an
// empty slice.
func (e *Engine) CategoryContent(ctx context.Context, category string, userTags []string, limit int) []ScoredAsset {
	timer := prometheus.NewTimer(metrics.PersonalizationDuration)
	defer timer.ObserveDuration()
	metrics.PersonalizationRequests.WithLabelValues(category).Inc()

	assets, err := e.fetcher.FetchAssets(ctx, category)
	if err != nil {
		e.logger.Warn().Err(err).Str("category", category).Msg("content fetch failed, serving empty content")
		return []ScoredAsset{}
	}

	scored := e.rank(assets, userTags)

	if limit <= 0 {
		limit = e.limits[category]
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// rank filters out ineligible assets and sorts the rest by relevance
// (descending), breaking ties by priority then ID for stable output.
func (e *Engine) rank(assets []content.Asset, userTags []string) []ScoredAsset {
	now := e.now()
	scored := make([]ScoredAsset, 0, len(assets))
	for _, asset := range assets {
		if !asset.Eligible(now) {
			continue
		}
		scored = append(scored, ScoredAsset{
			Asset:          asset,
			RelevanceScore: RelevanceScore(asset.Tags, userTags, e.taxonomy),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		return scored[i].ID < scored[j].ID
	})
	return scored
}

// Recommendations returns up to three active assets most similar to the
// current one, ranked by tag overlap boosted by the user's own tags. The
// current asset itself is never recommended.
func (e *Engine) Recommendations(current content.Asset, pool []content.Asset, userTags []string) []ScoredAsset {
	scored := make([]ScoredAsset, 0, len(pool))
	for _, candidate := range pool {
		if candidate.ID == current.ID || !candidate.IsActive {
			continue
		}
		scored = append(scored, ScoredAsset{
			Asset:          candidate,
			RelevanceScore: Similarity(current.Tags, candidate.Tags, userTags),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > recommendationLimit {
		scored = scored[:recommendationLimit]
	}
	return scored
}

// ReportInteraction forwards a content engagement report to the analytics
// endpoint. Best-effort: failures are logged, never returned.
func (e *Engine) ReportInteraction(ctx context.Context, interaction content.Interaction) {
	if e.reporter == nil {
		return
	}
	if interaction.OccurredAt.IsZero() {
		interaction.OccurredAt = e.now()
	}
	if err := e.reporter.ReportInteraction(ctx, interaction); err != nil {
		e.logger.Warn().Err(err).Str("content_id", interaction.ContentID).Msg("interaction report failed")
	}
}
