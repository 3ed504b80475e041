// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/tags"
)

// knownCategories guards the category URL segment.
var knownCategories = func() map[string]bool {
	out := make(map[string]bool, len(content.Categories))
	for _, c := range content.Categories {
		out[c] = true
	}
	return out
}()

type contentInteractionRequest struct {
	Action string `json:"action" validate:"required,oneof=view click share"`
}

// handleCategoryContent serves the ranked, limited asset list for one
// category, personalized to the caller's tags. Without a session header
// the content is served unpersonalized.
func (s *Server) handleCategoryContent(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if !knownCategories[category] {
		respondError(w, http.StatusNotFound, "unknown_category", "unknown content category")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	var userTags []string
	if key := r.Header.Get(sessionKeyHeader); key != "" {
		manager := s.registry.Manager(key, environmentFromRequest(r))
		userTags = manager.TagNames()
	}

	assets := s.personalizer.CategoryContent(r.Context(), category, userTags, limit)
	respondJSON(w, http.StatusOK, assets)
}

// handleContentInteraction records a content engagement: it tags the
// session behaviorally and forwards the report to analytics.
func (s *Server) handleContentInteraction(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")

	var req contentInteractionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var userTags []tags.Tag
	if key := r.Header.Get(sessionKeyHeader); key != "" {
		manager := s.registry.Manager(key, environmentFromRequest(r))
		manager.AddBehavioralTag("content_"+req.Action, contentID)
		userTags = manager.AllTags()
	}

	s.personalizer.ReportInteraction(r.Context(), content.Interaction{
		ContentID:       contentID,
		InteractionType: req.Action,
		UserTags:        userTags,
	})

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// handleRecommendations suggests assets related to the given one, drawn
// from the same category (or the one named by the category query param).
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "id")

	category := r.URL.Query().Get("category")
	if category == "" {
		category = content.CategoryCatalog
	}
	if !knownCategories[category] {
		respondError(w, http.StatusNotFound, "unknown_category", "unknown content category")
		return
	}

	pool, err := s.fetcher.FetchAssets(r.Context(), category)
	if err != nil {
		// Same degradation as personalization: recommendations are
		// optional decoration, never an error page.
		respondJSON(w, http.StatusOK, []content.Asset{})
		return
	}

	var current *content.Asset
	for i := range pool {
		if pool[i].ID == contentID {
			current = &pool[i]
			break
		}
	}
	if current == nil {
		respondError(w, http.StatusNotFound, "unknown_content", "content id not found in category")
		return
	}

	var userTags []string
	if key := r.Header.Get(sessionKeyHeader); key != "" {
		manager := s.registry.Manager(key, environmentFromRequest(r))
		userTags = manager.TagNames()
	}

	respondJSON(w, http.StatusOK, s.personalizer.Recommendations(*current, pool, userTags))
}
