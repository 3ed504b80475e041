// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/platewise/engage/internal/events"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// submitEventRequest is the event submission payload.
type submitEventRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=view hover click purchase"`
	ProductName string `json:"productName" validate:"required,max=256"`
	ProductID   string `json:"productId" validate:"max=128"`
}

// handleSubmitEvent accepts one interaction event and hands it to the
// batching engine. Acceptance is not delivery: the engine coalesces,
// deduplicates, and retries asynchronously.
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var req submitEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.tracker.Track(events.Kind(req.Kind), req.ProductName, req.ProductID)

	// Submitting a purchase or click is a behavioral signal worth a tag
	// when the caller identifies its session.
	if key := r.Header.Get(sessionKeyHeader); key != "" {
		manager := s.registry.Manager(key, environmentFromRequest(r))
		manager.AddBehavioralTag("product_"+req.Kind, req.ProductID)
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleEventStats reports a point-in-time snapshot of the batching
// engine's queues and counters.
func (s *Server) handleEventStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Stats())
}

// handleClearEvents cancels all pending work in the batching engine.
func (s *Server) handleClearEvents(w http.ResponseWriter, _ *http.Request) {
	s.engine.Clear()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
