// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/platewise/engage/internal/batcher"
	"github.com/platewise/engage/internal/config"
	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/events"
	"github.com/platewise/engage/internal/personalize"
	"github.com/platewise/engage/internal/tags"
)

// nullDispatcher swallows batches.
type nullDispatcher struct {
	mu      sync.Mutex
	batches [][]events.InteractionEvent
}

func (d *nullDispatcher) Dispatch(_ context.Context, batch []events.InteractionEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batch)
	return nil
}

// stubFetcher serves a fixed asset list for every category.
type stubFetcher struct {
	assets []content.Asset
	err    error
}

func (f *stubFetcher) FetchAssets(context.Context, string) ([]content.Asset, error) {
	return f.assets, f.err
}

func newTestServer(t *testing.T, fetcher content.Fetcher) *httptest.Server {
	t.Helper()

	engine := batcher.NewEngine(batcher.DefaultConfig(), &nullDispatcher{})
	t.Cleanup(engine.Clear)
	tracker := events.NewTracker(engine)
	registry := tags.NewRegistry(tags.NewMemoryStore())
	personalizer := personalize.NewEngine(fetcher, nil, personalize.Config{})

	srv := NewServer(tracker, engine, registry, personalizer, fetcher, config.APIConfig{
		RateLimit:       1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, sessionKey string) (*http.Response, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionKey != "" {
		req.Header.Set(sessionKeyHeader, sessionKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return resp, envelope
}

func TestSubmitEventAccepted(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	resp, envelope := doJSON(t, http.MethodPost, ts.URL+"/api/v1/events", map[string]string{
		"kind":        "click",
		"productName": "espresso",
		"productId":   "p-1",
	}, "sess-1")

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", resp.StatusCode)
	}
	if !envelope.Success {
		t.Error("expected success envelope")
	}
}

func TestSubmitEventValidation(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	tests := []struct {
		name string
		body map[string]string
	}{
		{"unknown kind", map[string]string{"kind": "swipe", "productName": "espresso"}},
		{"missing name", map[string]string{"kind": "click"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, envelope := doJSON(t, http.MethodPost, ts.URL+"/api/v1/events", tt.body, "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", resp.StatusCode)
			}
			if envelope.Success || envelope.Error == nil {
				t.Error("expected error envelope")
			}
		})
	}
}

func TestEventStatsAndClear(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	for i := 0; i < 3; i++ {
		doJSON(t, http.MethodPost, ts.URL+"/api/v1/events", map[string]string{
			"kind":        "view",
			"productName": "espresso",
			"productId":   "p-" + string(rune('a'+i)),
		}, "")
	}

	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/api/v1/events/stats", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status: got %d", resp.StatusCode)
	}
	stats, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("stats payload shape: %T", envelope.Data)
	}
	if stats["aggregableCount"].(float64) != 3 {
		t.Errorf("aggregableCount: got %v, want 3", stats["aggregableCount"])
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/events", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status: got %d", resp.StatusCode)
	}

	_, envelope = doJSON(t, http.MethodGet, ts.URL+"/api/v1/events/stats", nil, "")
	stats = envelope.Data.(map[string]any)
	if stats["aggregableCount"].(float64) != 0 {
		t.Errorf("aggregableCount after clear: got %v, want 0", stats["aggregableCount"])
	}
}

func TestTagEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/tags", nil, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing session header: got %d, want 400", resp.StatusCode)
	}

	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/api/v1/tags", nil, "sess-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list tags: got %d", resp.StatusCode)
	}
	derived, ok := envelope.Data.([]any)
	if !ok || len(derived) == 0 {
		t.Fatalf("expected derived environment tags, got %v", envelope.Data)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/tags/questionnaire", map[string]any{
		"questionId": "diet",
		"tags":       []string{"VEGAN"},
	}, "sess-1")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("questionnaire tags: got %d", resp.StatusCode)
	}

	resp, envelope = doJSON(t, http.MethodGet, ts.URL+"/api/v1/tags/source/questionnaire", nil, "sess-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tags by source: got %d", resp.StatusCode)
	}
	byvar, _ := envelope.Data.([]any)
	if len(byvar) != 1 {
		t.Fatalf("expected 1 questionnaire tag, got %d", len(byvar))
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/tags", nil, "sess-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear tags: got %d", resp.StatusCode)
	}
}

func TestCategoryContentEndpoint(t *testing.T) {
	fetcher := &stubFetcher{assets: []content.Asset{
		{ID: "vegan", Type: content.CategoryBanners, Tags: []string{"VEGAN"}, IsActive: true},
		{ID: "plain", Type: content.CategoryBanners, IsActive: true},
	}}
	ts := newTestServer(t, fetcher)

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/tags/questionnaire", map[string]any{
		"questionId": "diet",
		"tags":       []string{"VEGAN"},
	}, "sess-1")

	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/api/v1/content/banners", nil, "sess-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("content: got %d", resp.StatusCode)
	}
	assets, ok := envelope.Data.([]any)
	if !ok || len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %v", envelope.Data)
	}
	first := assets[0].(map[string]any)
	if first["id"] != "vegan" {
		t.Errorf("personalized order: got %v first", first["id"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/content/unknowncat", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown category: got %d, want 404", resp.StatusCode)
	}
}

// recordingReporter captures interaction reports.
type recordingReporter struct {
	mu           sync.Mutex
	interactions []content.Interaction
}

func (r *recordingReporter) ReportInteraction(_ context.Context, i content.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions = append(r.interactions, i)
	return nil
}

func (r *recordingReporter) recorded() []content.Interaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interactions
}

func TestContentInteractionReportsSessionTags(t *testing.T) {
	reporter := &recordingReporter{}
	engine := batcher.NewEngine(batcher.DefaultConfig(), &nullDispatcher{})
	t.Cleanup(engine.Clear)
	tracker := events.NewTracker(engine)
	registry := tags.NewRegistry(tags.NewMemoryStore())
	personalizer := personalize.NewEngine(&stubFetcher{}, reporter, personalize.Config{})

	srv := NewServer(tracker, engine, registry, personalizer, &stubFetcher{}, config.APIConfig{
		RateLimit:       1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	doJSON(t, http.MethodPost, ts.URL+"/api/v1/tags/questionnaire", map[string]any{
		"questionId": "diet",
		"tags":       []string{"VEGAN"},
	}, "sess-1")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/content/b1/interaction", map[string]string{
		"action": "click",
	}, "sess-1")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("interaction status: got %d, want 202", resp.StatusCode)
	}

	reports := reporter.recorded()
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	report := reports[0]
	if report.ContentID != "b1" || report.InteractionType != "click" {
		t.Errorf("report mangled: %+v", report)
	}
	names := tags.Names(report.UserTags)
	found := false
	for _, name := range names {
		if name == "VEGAN" {
			found = true
		}
	}
	if !found {
		t.Errorf("report must carry the session's tags, got %v", names)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	fetcher := &stubFetcher{assets: []content.Asset{
		{ID: "current", Tags: []string{"VEGAN", "GYM"}, IsActive: true},
		{ID: "similar", Tags: []string{"VEGAN", "GYM"}, IsActive: true},
		{ID: "far", Tags: []string{"OS_LINUX"}, IsActive: true},
	}}
	ts := newTestServer(t, fetcher)

	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/api/v1/recommendations/current?category=catalog", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recommendations: got %d", resp.StatusCode)
	}
	recs, ok := envelope.Data.([]any)
	if !ok || len(recs) == 0 {
		t.Fatalf("expected recommendations, got %v", envelope.Data)
	}
	first := recs[0].(map[string]any)
	if first["id"] != "similar" {
		t.Errorf("most similar first: got %v", first["id"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/recommendations/missing?category=catalog", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown content id: got %d, want 404", resp.StatusCode)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: got %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics: got %d", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options: got %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options: got %q", got)
	}
}
