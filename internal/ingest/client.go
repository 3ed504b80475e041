// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package ingest delivers interaction event batches and session snapshots
// to the upstream analytics collector.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/platewise/engage/internal/events"
	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/tags"
)

// maxErrorBodySize bounds error response reads.
const maxErrorBodySize = 64 * 1024 // 64KB

// Config holds the analytics collector connection settings.
type Config struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns sensible ingest client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// batchPayload is the wire shape for event batch delivery.
type batchPayload struct {
	Events []events.InteractionEvent `json:"events"`
}

// sessionPayload is the wire shape for session synchronization.
type sessionPayload struct {
	SessionData tags.SessionSnapshot `json:"sessionData"`
}

// Client posts event batches and session snapshots to the collector. It
// implements batcher.Dispatcher and tags.SessionSyncer. Deliveries share
// one circuit breaker: when the collector is down, batches fail fast and
// the batching engine's retry and dead-letter handling takes over.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[struct{}]
	logger  zerolog.Logger
}

// NewClient creates a collector client.
// Circuit breaker configuration:
// - Opens after 60% failure rate with minimum 5 requests
// - 30 second timeout before attempting recovery
func NewClient(cfg Config) *Client {
	logger := logging.With().Str("component", "ingest").Logger()

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "analytics-collector",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
		logger:  logger,
	}
}

// Dispatch delivers one event batch to the collector. An error return
// leaves retry policy to the batching engine.
func (c *Client) Dispatch(ctx context.Context, batch []events.InteractionEvent) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, "/register-events-batch", batchPayload{Events: batch})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Int("batch_size", len(batch)).Msg("batch dispatch rejected, circuit open")
		}
		return err
	}
	return nil
}

// SyncSession pushes one session snapshot to the collector.
func (c *Client) SyncSession(ctx context.Context, snapshot tags.SessionSnapshot) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, "/sessions/sync", sessionPayload{SessionData: snapshot})
	})
	return err
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("collector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("collector returned HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// readBodyForError reads a bounded amount of the response body for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
