// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Command server runs the Engage behavioral tracking and personalization
// service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/platewise/engage/internal/api"
	"github.com/platewise/engage/internal/batcher"
	"github.com/platewise/engage/internal/config"
	"github.com/platewise/engage/internal/content"
	"github.com/platewise/engage/internal/events"
	"github.com/platewise/engage/internal/ingest"
	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/personalize"
	"github.com/platewise/engage/internal/tags"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("tag_store", cfg.Tags.Store).
		Str("collector", cfg.Ingest.BaseURL).
		Msg("Starting Engage")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session tag store: durable BadgerDB by default, in-memory when
	// configured for ephemeral single-process runs.
	var store tags.Store
	var db *badger.DB
	if strings.EqualFold(cfg.Tags.Store, "memory") {
		store = tags.NewMemoryStore()
	} else {
		db, err = badger.Open(badger.DefaultOptions(cfg.Tags.Path).WithLogger(nil))
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Tags.Path).Msg("Failed to open tag store")
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Failed to close tag store")
			}
		}()
		store = tags.NewBadgerStore(db)
	}

	collector := ingest.NewClient(cfg.Ingest)

	engine := batcher.NewEngine(cfg.Batcher, collector,
		batcher.WithDeadLetterFunc(func(batch []events.InteractionEvent) {
			logging.Error().Int("batch_size", len(batch)).Msg("Batch dead-lettered after retry budget")
		}),
	)
	defer engine.Clear()

	tracker := events.NewTracker(engine)
	registry := tags.NewRegistry(store, tags.WithSyncer(collector))

	contentClient := content.NewClient(cfg.Content)
	personalizer := personalize.NewEngine(contentClient, contentClient, cfg.Personalize)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(tracker, engine, registry, personalizer, contentClient, cfg.API).Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logging.Info().Msg("Engage stopped")
}
