// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import (
	"net/url"
	"testing"
	"time"
)

func tagNames(tags []Tag) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		out[t.Name] = true
	}
	return out
}

func TestDeriveTagsDeviceAndBrowser(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      []string
		notWant   []string
	}{
		{
			name:      "windows chrome desktop",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/126.0 Safari/537.36",
			want:      []string{"DEVICE_DESKTOP", "OS_WINDOWS", "BROWSER_CHROME"},
			notWant:   []string{"BROWSER_SAFARI", "DEVICE_MOBILE"},
		},
		{
			name:      "iphone safari",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Version/17.0 Mobile/15E148 Safari/604.1",
			want:      []string{"DEVICE_MOBILE", "OS_MAC", "BROWSER_SAFARI"},
			notWant:   []string{"DEVICE_DESKTOP", "BROWSER_CHROME"},
		},
		{
			name:      "android chrome",
			userAgent: "Mozilla/5.0 (Linux; Android 14) Chrome/126.0 Mobile Safari/537.36",
			want:      []string{"DEVICE_MOBILE", "OS_LINUX", "BROWSER_CHROME"},
			notWant:   []string{"BROWSER_SAFARI"},
		},
		{
			name:      "linux firefox",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
			want:      []string{"DEVICE_DESKTOP", "OS_LINUX", "BROWSER_FIREFOX"},
			notWant:   []string{"BROWSER_CHROME"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tagNames(DeriveTags(Environment{
				UserAgent: tt.userAgent,
				Now:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			}))
			for _, name := range tt.want {
				if !got[name] {
					t.Errorf("missing %s", name)
				}
			}
			for _, name := range tt.notWant {
				if got[name] {
					t.Errorf("unexpected %s", name)
				}
			}
		})
	}
}

func TestDeriveTagsTimeBuckets(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{6, "TIME_MORNING"},
		{11, "TIME_MORNING"},
		{12, "TIME_AFTERNOON"},
		{17, "TIME_AFTERNOON"},
		{18, "TIME_EVENING"},
		{21, "TIME_EVENING"},
		{22, "TIME_NIGHT"},
		{3, "TIME_NIGHT"},
		{5, "TIME_NIGHT"},
	}

	for _, tt := range tests {
		got := tagNames(DeriveTags(Environment{
			Now: time.Date(2026, 3, 2, tt.hour, 30, 0, 0, time.UTC),
		}))
		if !got[tt.want] {
			t.Errorf("hour %d: missing %s", tt.hour, tt.want)
		}
	}
}

func TestDeriveTagsWeekendVersusWeekday(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	if !tagNames(DeriveTags(Environment{Now: saturday}))["DAY_WEEKEND"] {
		t.Error("saturday should derive DAY_WEEKEND")
	}
	if !tagNames(DeriveTags(Environment{Now: monday}))["DAY_WEEKDAY"] {
		t.Error("monday should derive DAY_WEEKDAY")
	}
}

func TestDeriveTagsUTMParams(t *testing.T) {
	query := url.Values{}
	query.Set("utm_source", "newsletter")
	query.Set("utm_campaign", "spring")
	query.Set("unrelated", "ignored")

	got := tagNames(DeriveTags(Environment{
		Query: query,
		Now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}))

	if !got["UTM_SOURCE_NEWSLETTER"] {
		t.Error("missing UTM_SOURCE_NEWSLETTER")
	}
	if !got["UTM_CAMPAIGN_SPRING"] {
		t.Error("missing UTM_CAMPAIGN_SPRING")
	}
	for name := range got {
		if name == "UTM_UNRELATED_IGNORED" {
			t.Error("non-UTM query parameter leaked into tags")
		}
	}
}

func TestDeriveTagsLocationHint(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	with := tagNames(DeriveTags(Environment{HasLocationHint: true, Now: now}))
	if !with["LOCATION_DETECTED"] {
		t.Error("location hint should derive LOCATION_DETECTED")
	}

	without := tagNames(DeriveTags(Environment{Now: now}))
	if without["LOCATION_DETECTED"] {
		t.Error("no hint, no location tag")
	}
}

func TestEnvironmentUTM(t *testing.T) {
	query := url.Values{}
	query.Set("utm_source", "ads")
	query.Set("utm_medium", "cpc")

	utm := Environment{Query: query}.UTM()
	if utm.Source != "ads" || utm.Medium != "cpc" {
		t.Errorf("unexpected UTM params: %+v", utm)
	}
	if utm.Campaign != "" {
		t.Errorf("absent parameter should be empty, got %q", utm.Campaign)
	}
}
