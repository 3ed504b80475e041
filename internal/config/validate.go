// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for values that would prevent the
// service from operating. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Message: fmt.Sprintf("must be 1-65535, got %d", c.Server.Port)}
	}
	if c.Server.ShutdownTimeout <= 0 {
		return &ValidationError{Field: "server.shutdown_timeout", Message: "must be positive"}
	}

	switch strings.ToLower(c.Tags.Store) {
	case "badger":
		if c.Tags.Path == "" {
			return &ValidationError{Field: "tags.path", Message: "required when tags.store is badger"}
		}
	case "memory":
	default:
		return &ValidationError{Field: "tags.store", Message: fmt.Sprintf("must be badger or memory, got %q", c.Tags.Store)}
	}

	if err := validateBaseURL("ingest.base_url", c.Ingest.BaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("content.base_url", c.Content.BaseURL); err != nil {
		return err
	}

	if c.Batcher.DebounceDelay <= 0 {
		return &ValidationError{Field: "batcher.debounce_delay", Message: "must be positive"}
	}
	if c.Batcher.MaxAttempts < 1 {
		return &ValidationError{Field: "batcher.max_attempts", Message: "must be at least 1"}
	}

	if c.API.RateLimit < 0 {
		return &ValidationError{Field: "api.rate_limit", Message: "must not be negative"}
	}

	for category, limit := range c.Personalize.Limits {
		if limit < 0 {
			return &ValidationError{Field: "personalize.limits." + category, Message: "must not be negative"}
		}
	}

	return nil
}

// validateBaseURL requires the URL to be set and parseable with an http
// or https scheme.
func validateBaseURL(field, raw string) error {
	if raw == "" {
		return &ValidationError{Field: field, Message: "required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Message: "missing host"}
	}
	return nil
}
