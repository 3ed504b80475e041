// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEventsDroppedLabels(t *testing.T) {
	before := testutil.ToFloat64(EventsDropped.WithLabelValues("invalid"))
	EventsDropped.WithLabelValues("invalid").Inc()
	after := testutil.ToFloat64(EventsDropped.WithLabelValues("invalid"))

	if after != before+1 {
		t.Errorf("counter did not increment: before=%v after=%v", before, after)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/events/stats", 200, 5*time.Millisecond)

	got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/events/stats", "200"))
	if got < 1 {
		t.Errorf("expected at least one recorded request, got %v", got)
	}
}

func TestQueueDepthGauge(t *testing.T) {
	QueueDepth.WithLabelValues("aggregable").Set(3)
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("aggregable")); got != 3 {
		t.Errorf("gauge = %v, want 3", got)
	}
	QueueDepth.WithLabelValues("aggregable").Set(0)
}
