// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package tags

import (
	"net/url"
	"strings"
	"time"
)

// Environment is a snapshot of the client context a session was opened
// from: user agent, campaign query parameters, local time, and an optional
// coarse location hint. The HTTP layer builds it from request data; tests
// construct it directly.
type Environment struct {
	UserAgent       string
	Platform        string
	Query           url.Values
	Timezone        string
	ScreenSize      string
	HasLocationHint bool
	Now             time.Time
}

// utmParams are the campaign query parameters inspected at session start.
var utmParams = []string{"source", "medium", "campaign", "term", "content"}

// DeriveTags computes the automatic tag set for an environment snapshot.
// Derivation is pure and idempotent: applying the result through AddTag a
// second time changes nothing because of the name-uniqueness invariant.
//
// At most one device-class, one OS, and one browser-family tag are
// emitted; exactly one time-of-day and one weekday/weekend tag; a single
// coarse location tag when a hint is present. No coordinates are ever
// derived or stored.
func DeriveTags(env Environment) []Tag {
	now := env.Now
	if now.IsZero() {
		now = time.Now()
	}

	var out []Tag
	add := func(name string, source Source, value string) {
		out = append(out, Tag{Name: name, Source: source, Value: value, AssignedAt: now})
	}

	for _, param := range utmParams {
		if v := env.Query.Get("utm_" + param); v != "" {
			add("UTM_"+strings.ToUpper(param)+"_"+strings.ToUpper(v), SourceCampaign, v)
		}
	}

	ua := env.UserAgent
	if containsAny(ua, "Mobile", "Android", "iPhone", "iPad") {
		add("DEVICE_MOBILE", SourceDevice, "")
	} else {
		add("DEVICE_DESKTOP", SourceDevice, "")
	}

	switch {
	case strings.Contains(ua, "Windows"):
		add("OS_WINDOWS", SourceDevice, "")
	case strings.Contains(ua, "Mac"):
		add("OS_MAC", SourceDevice, "")
	case strings.Contains(ua, "Linux"):
		add("OS_LINUX", SourceDevice, "")
	}

	switch {
	case strings.Contains(ua, "Chrome"):
		add("BROWSER_CHROME", SourceDevice, "")
	case strings.Contains(ua, "Firefox"):
		add("BROWSER_FIREFOX", SourceDevice, "")
	case strings.Contains(ua, "Safari"):
		add("BROWSER_SAFARI", SourceDevice, "")
	}

	switch hour := now.Hour(); {
	case hour >= 6 && hour < 12:
		add("TIME_MORNING", SourceTime, "")
	case hour >= 12 && hour < 18:
		add("TIME_AFTERNOON", SourceTime, "")
	case hour >= 18 && hour < 22:
		add("TIME_EVENING", SourceTime, "")
	default:
		add("TIME_NIGHT", SourceTime, "")
	}

	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		add("DAY_WEEKEND", SourceTime, "")
	default:
		add("DAY_WEEKDAY", SourceTime, "")
	}

	if env.HasLocationHint {
		add("LOCATION_DETECTED", SourceLocation, "")
	}

	return out
}

// IsMobile reports whether the environment's user agent looks like a
// mobile device. Used for the session snapshot's device info.
func (env Environment) IsMobile() bool {
	return containsAny(env.UserAgent, "Mobile", "Android", "iPhone", "iPad")
}

// UTM extracts the campaign parameters present in the environment query.
func (env Environment) UTM() UTMParams {
	return UTMParams{
		Source:   env.Query.Get("utm_source"),
		Medium:   env.Query.Get("utm_medium"),
		Campaign: env.Query.Get("utm_campaign"),
		Term:     env.Query.Get("utm_term"),
		Content:  env.Query.Get("utm_content"),
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
