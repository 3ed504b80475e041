// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platewise/engage/internal/batcher"
	"github.com/platewise/engage/internal/config"
	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/events"
	"github.com/platewise/engage/internal/personalize"
	"github.com/platewise/engage/internal/tags"
)

// sessionKeyHeader identifies the calling session. The storefront sends a
// stable per-visitor value (its cookie or local storage key).
const sessionKeyHeader = "X-Session-Key"

// Server holds the wired application components behind the HTTP surface.
type Server struct {
	tracker      *events.Tracker
	engine       *batcher.Engine
	registry     *tags.Registry
	personalizer *personalize.Engine
	fetcher      content.Fetcher
	cfg          config.APIConfig
}

// NewServer creates the HTTP server facade over the given components.
func NewServer(
	tracker *events.Tracker,
	engine *batcher.Engine,
	registry *tags.Registry,
	personalizer *personalize.Engine,
	fetcher content.Fetcher,
	cfg config.APIConfig,
) *Server {
	return &Server{
		tracker:      tracker,
		engine:       engine,
		registry:     registry,
		personalizer: personalizer,
		fetcher:      fetcher,
		cfg:          cfg,
	}
}

// Routes builds the chi handler tree.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", sessionKeyHeader, "X-Timezone", "X-Screen-Size", "X-Location-Hint"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(securityHeaders)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", s.handleHealthLive)
		r.Get("/ready", s.handleHealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, s.cfg.RateLimitWindow))
			r.Use(globalRateLimit(float64(s.cfg.RateLimit), s.cfg.RateLimit))
		}
		r.Use(prometheusMetrics)

		r.Post("/events", s.handleSubmitEvent)
		r.Get("/events/stats", s.handleEventStats)
		r.Delete("/events", s.handleClearEvents)

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", s.handleListTags)
			r.Get("/source/{source}", s.handleTagsBySource)
			r.Post("/", s.handleAddTag)
			r.Post("/questionnaire", s.handleQuestionnaireTags)
			r.Post("/behavior", s.handleBehavioralTag)
			r.Delete("/", s.handleClearTags)
		})

		r.Get("/session", s.handleSessionData)
		r.Post("/sessions/sync", s.handleSessionSync)

		r.Get("/content/{category}", s.handleCategoryContent)
		r.Post("/content/{id}/interaction", s.handleContentInteraction)
		r.Get("/recommendations/{id}", s.handleRecommendations)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleHealthReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// sessionManager resolves the caller's tag manager, creating it from the
// request environment on first contact. Returns nil after writing an
// error when the session header is missing.
func (s *Server) sessionManager(w http.ResponseWriter, r *http.Request) *tags.Manager {
	key := r.Header.Get(sessionKeyHeader)
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_session", "X-Session-Key header is required")
		return nil
	}
	return s.registry.Manager(key, environmentFromRequest(r))
}

// environmentFromRequest snapshots the client context carried on the
// request: user agent, campaign query parameters, and the optional
// client-hint headers the storefront forwards.
func environmentFromRequest(r *http.Request) tags.Environment {
	platform := strings.Trim(r.Header.Get("Sec-CH-UA-Platform"), `"`)
	return tags.Environment{
		UserAgent:       r.UserAgent(),
		Platform:        platform,
		Query:           r.URL.Query(),
		Timezone:        r.Header.Get("X-Timezone"),
		ScreenSize:      r.Header.Get("X-Screen-Size"),
		HasLocationHint: r.Header.Get("X-Location-Hint") != "",
	}
}
