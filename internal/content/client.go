// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/metrics"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// Fetcher retrieves assets for one content category. Implemented by Client
// for production and by fakes in tests.
type Fetcher interface {
	FetchAssets(ctx context.Context, category string) ([]Asset, error)
}

// Reporter pushes content interaction reports.
type Reporter interface {
	ReportInteraction(ctx context.Context, interaction Interaction) error
}

// Config holds the content service connection settings.
type Config struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns sensible content client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
	}
}

// Client talks to the content service over HTTP. Fetches are protected by
// a circuit breaker so a down content service degrades to empty content
// quickly instead of stacking up slow requests.
//
// Thread safety: safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]Asset]
	logger  zerolog.Logger
}

// NewClient creates a content service client.
// Circuit breaker configuration:
// - Opens after 60% failure rate with minimum 5 requests
// - 30 second timeout before attempting recovery
// - 2 concurrent probe requests in half-open state
func NewClient(cfg Config) *Client {
	logger := logging.With().Str("component", "content").Logger()

	cb := gobreaker.NewCircuitBreaker[[]Asset](gobreaker.Settings{
		Name:        "content-service",
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

// FetchAssets retrieves all assets for a category. A rejected or failed
// request returns an error; callers are expected to degrade to empty
// content.
func (c *Client) FetchAssets(ctx context.Context, category string) ([]Asset, error) {
	assets, err := c.cb.Execute(func() ([]Asset, error) {
		return c.fetchAssets(ctx, category)
	})
	if err != nil {
		metrics.ContentFetchFailures.WithLabelValues(category).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn().Str("category", category).Msg("content fetch rejected, circuit open")
		}
		return nil, err
	}
	return assets, nil
}

func (c *Client) fetchAssets(ctx context.Context, category string) ([]Asset, error) {
	params := url.Values{}
	params.Set("type", category)
	reqURL := fmt.Sprintf("%s/content/components?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("content fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("content fetch returned HTTP %d: %s", resp.StatusCode, body)
	}

	var assets []Asset
	if err := json.NewDecoder(resp.Body).Decode(&assets); err != nil {
		return nil, fmt.Errorf("failed to decode content response: %w", err)
	}
	return assets, nil
}

// ReportInteraction pushes one interaction to the analytics endpoint.
// Failures are returned for the caller to log; nothing is retried.
func (c *Client) ReportInteraction(ctx context.Context, interaction Interaction) error {
	data, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %w", err)
	}

	reqURL := c.baseURL + "/analytics/content-interaction"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("interaction report failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := readBodyForError(resp.Body)
		return fmt.Errorf("interaction report returned HTTP %d: %s", resp.StatusCode, body)
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
