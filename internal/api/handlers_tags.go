// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/platewise/engage/internal/tags"
)

// validSources maps URL source segments to tag sources.
var validSources = map[string]tags.Source{
	"campaign":      tags.SourceCampaign,
	"device":        tags.SourceDevice,
	"time":          tags.SourceTime,
	"location":      tags.SourceLocation,
	"questionnaire": tags.SourceQuestionnaire,
	"behavior":      tags.SourceBehavior,
}

type addTagRequest struct {
	Name   string `json:"name" validate:"required,max=128"`
	Source string `json:"source" validate:"required,oneof=campaign device time location questionnaire behavior"`
	Value  string `json:"value" validate:"max=256"`
}

type questionnaireTagsRequest struct {
	QuestionID string   `json:"questionId" validate:"required,max=128"`
	Tags       []string `json:"tags" validate:"required,min=1,dive,required,max=128"`
}

type behavioralTagRequest struct {
	Behavior string `json:"behavior" validate:"required,max=128"`
	Context  string `json:"context" validate:"max=256"`
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	respondJSON(w, http.StatusOK, manager.AllTags())
}

func (s *Server) handleTagsBySource(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	source, ok := validSources[chi.URLParam(r, "source")]
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_source", "unknown tag source")
		return
	}
	respondJSON(w, http.StatusOK, manager.TagsBySource(source))
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	var req addTagRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	manager.AddTag(tags.Tag{Name: req.Name, Source: validSources[req.Source], Value: req.Value})
	respondJSON(w, http.StatusCreated, manager.AllTags())
}

func (s *Server) handleQuestionnaireTags(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	var req questionnaireTagsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	manager.AddQuestionnaireTag(req.QuestionID, req.Tags)
	respondJSON(w, http.StatusCreated, manager.AllTags())
}

func (s *Server) handleBehavioralTag(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	var req behavioralTagRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	manager.AddBehavioralTag(req.Behavior, req.Context)
	respondJSON(w, http.StatusCreated, manager.AllTags())
}

func (s *Server) handleClearTags(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	manager.ClearSessionTags()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSessionData(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	respondJSON(w, http.StatusOK, manager.SessionData())
}

// handleSessionSync pushes the session snapshot upstream. The push is
// best-effort; the handler acknowledges the attempt, not delivery.
func (s *Server) handleSessionSync(w http.ResponseWriter, r *http.Request) {
	manager := s.sessionManager(w, r)
	if manager == nil {
		return
	}
	manager.SyncSessionData(r.Context())
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sync attempted"})
}
