// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package personalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platewise/engage/internal/content"
)

// fakeFetcher serves canned assets per category.
type fakeFetcher struct {
	assets map[string][]content.Asset
	err    error
}

func (f *fakeFetcher) FetchAssets(_ context.Context, category string) ([]content.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assets[category], nil
}

// fakeReporter records interactions.
type fakeReporter struct {
	interactions []content.Interaction
	err          error
}

func (f *fakeReporter) ReportInteraction(_ context.Context, i content.Interaction) error {
	f.interactions = append(f.interactions, i)
	return f.err
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestEngine(fetcher content.Fetcher, reporter content.Reporter, cfg Config) *Engine {
	return NewEngine(fetcher, reporter, cfg, WithNowFunc(func() time.Time { return testNow }))
}

func TestCategoryContentRanksByRelevance(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string][]content.Asset{
		content.CategoryBanners: {
			{ID: "generic", Tags: nil, IsActive: true},                     // 0.5 neutral
			{ID: "vegan", Tags: []string{"VEGAN"}, IsActive: true},         // 1.0 + 0.1 capped
			{ID: "gym", Tags: []string{"GYM", "WORKOUT"}, IsActive: true},  // partials only
			{ID: "inactive", Tags: []string{"VEGAN"}, IsActive: false},     // filtered
		},
	}}
	engine := newTestEngine(fetcher, nil, Config{})

	got := engine.CategoryContent(context.Background(), content.CategoryBanners, []string{"VEGAN"}, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(got))
	}
	if got[0].ID != "vegan" {
		t.Errorf("best match should rank first, got %s", got[0].ID)
	}
	if got[0].RelevanceScore != 1.0 {
		t.Errorf("full match score: got %v, want 1.0", got[0].RelevanceScore)
	}
	for _, asset := range got {
		if asset.ID == "inactive" {
			t.Error("inactive asset served")
		}
	}
}

func TestCategoryContentAppliesCategoryLimit(t *testing.T) {
	var assets []content.Asset
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assets = append(assets, content.Asset{ID: id, IsActive: true})
	}
	fetcher := &fakeFetcher{assets: map[string][]content.Asset{content.CategoryBanners: assets}}
	engine := newTestEngine(fetcher, nil, Config{})

	got := engine.CategoryContent(context.Background(), content.CategoryBanners, nil, 0)
	if len(got) != 3 {
		t.Errorf("default banner limit is 3, got %d", len(got))
	}

	got = engine.CategoryContent(context.Background(), content.CategoryBanners, nil, 2)
	if len(got) != 2 {
		t.Errorf("requested limit 2, got %d", len(got))
	}
}

func TestCategoryContentConfiguredLimitOverridesDefault(t *testing.T) {
	var assets []content.Asset
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assets = append(assets, content.Asset{ID: id, IsActive: true})
	}
	fetcher := &fakeFetcher{assets: map[string][]content.Asset{content.CategoryBanners: assets}}
	engine := newTestEngine(fetcher, nil, Config{Limits: map[string]int{content.CategoryBanners: 5}})

	got := engine.CategoryContent(context.Background(), content.CategoryBanners, nil, 0)
	if len(got) != 5 {
		t.Errorf("configured limit 5, got %d", len(got))
	}
}

func TestCategoryContentFetchFailureServesEmpty(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("content service down")}
	engine := newTestEngine(fetcher, nil, Config{})

	got := engine.CategoryContent(context.Background(), content.CategoryBanners, []string{"VEGAN"}, 0)
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d assets", len(got))
	}
}

func TestCategoryContentFiltersValidityWindow(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	fetcher := &fakeFetcher{assets: map[string][]content.Asset{
		content.CategoryFeatures: {
			{ID: "live", IsActive: true, ValidFrom: &past, ValidUntil: &future},
			{ID: "expired", IsActive: true, ValidUntil: &past},
			{ID: "upcoming", IsActive: true, ValidFrom: &future},
		},
	}}
	engine := newTestEngine(fetcher, nil, Config{})

	got := engine.CategoryContent(context.Background(), content.CategoryFeatures, nil, 0)
	if len(got) != 1 || got[0].ID != "live" {
		t.Fatalf("expected only the live asset, got %+v", got)
	}
}

func TestCategoryContentTieBreaksByPriority(t *testing.T) {
	fetcher := &fakeFetcher{assets: map[string][]content.Asset{
		content.CategoryTestimonials: {
			{ID: "low", Priority: 1, IsActive: true},
			{ID: "high", Priority: 9, IsActive: true},
		},
	}}
	engine := newTestEngine(fetcher, nil, Config{})

	got := engine.CategoryContent(context.Background(), content.CategoryTestimonials, nil, 0)
	if got[0].ID != "high" {
		t.Errorf("equal scores should order by priority, got %s first", got[0].ID)
	}
}

func TestRecommendationsTopThreeMostSimilar(t *testing.T) {
	current := content.Asset{ID: "current", Tags: []string{"VEGAN", "GYM"}, IsActive: true}
	pool := []content.Asset{
		current, // must be excluded
		{ID: "close", Tags: []string{"VEGAN", "GYM"}, IsActive: true},
		{ID: "half", Tags: []string{"VEGAN", "HEALTHY"}, IsActive: true},
		{ID: "far", Tags: []string{"OS_LINUX"}, IsActive: true},
		{ID: "inactive", Tags: []string{"VEGAN", "GYM"}, IsActive: false},
		{ID: "other", Tags: []string{"GYM", "WELLNESS"}, IsActive: true},
	}
	engine := newTestEngine(&fakeFetcher{}, nil, Config{})

	got := engine.Recommendations(current, pool, []string{"VEGAN"})
	if len(got) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(got))
	}
	if got[0].ID != "close" {
		t.Errorf("most similar should rank first, got %s", got[0].ID)
	}
	for _, rec := range got {
		if rec.ID == "current" {
			t.Error("current asset must not be recommended")
		}
		if rec.ID == "inactive" {
			t.Error("inactive asset must not be recommended")
		}
	}
}

func TestReportInteractionBestEffort(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("analytics down")}
	engine := newTestEngine(&fakeFetcher{}, reporter, Config{})

	// Must not panic or surface the error.
	engine.ReportInteraction(context.Background(), content.Interaction{ContentID: "b1", InteractionType: "click"})
	if len(reporter.interactions) != 1 {
		t.Fatalf("expected one report attempt, got %d", len(reporter.interactions))
	}
	if reporter.interactions[0].OccurredAt.IsZero() {
		t.Error("missing timestamp should be stamped")
	}
}
