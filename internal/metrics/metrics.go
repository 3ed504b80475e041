// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package metrics defines the Prometheus instrumentation for Engage:
// event intake and drop accounting, dispatch outcomes, queue depths,
// tag assignment, personalization latency, and outbound client health.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event intake metrics.

	EventsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_events_submitted_total",
			Help: "Total number of interaction events accepted into a queue",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_events_dropped_total",
			Help: "Total number of interaction events dropped before queueing",
		},
		[]string{"reason"}, // "invalid", "duplicate"
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engage_queue_depth",
			Help: "Current number of events waiting in a dispatch queue",
		},
		[]string{"queue"}, // "aggregable", "immediate"
	)

	// Dispatch metrics.

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_dispatches_total",
			Help: "Total number of batch dispatches to the ingestion endpoint",
		},
		[]string{"queue", "outcome"}, // outcome: "success", "failure"
	)

	DispatchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_dispatch_retries_total",
			Help: "Total number of dispatch retries after transport failure",
		},
		[]string{"queue"},
	)

	DeadLetteredEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_dead_lettered_events_total",
			Help: "Total number of events dropped after exhausting the retry budget",
		},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engage_dispatch_duration_seconds",
			Help:    "Duration of ingestion endpoint dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Tag metrics.

	TagAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_tag_assignments_total",
			Help: "Total number of tags assigned to sessions",
		},
		[]string{"source"},
	)

	TagStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_tag_store_errors_total",
			Help: "Total number of durable tag store read/write failures",
		},
	)

	SessionSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_session_syncs_total",
			Help: "Total number of session snapshot sync attempts",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Personalization metrics.

	PersonalizationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_personalization_requests_total",
			Help: "Total number of personalized content requests by category",
		},
		[]string{"category"},
	)

	PersonalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engage_personalization_duration_seconds",
			Help:    "Duration of content fetch, score, and rank in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ContentFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_content_fetch_failures_total",
			Help: "Total number of content backend fetch failures (degraded to empty results)",
		},
		[]string{"category"},
	)

	// API metrics.

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engage_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
