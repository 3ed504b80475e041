// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package batcher

import "time"

// Config holds batching engine settings.
// Environment and file configuration map onto this via internal/config.
type Config struct {
	// DebounceDelay is how long the aggregable queue waits after the most
	// recent submission before flushing, and how long the immediate drain
	// waits before each pop.
	DebounceDelay time.Duration `koanf:"debounce_delay"`

	// DuplicateWindow suppresses a submission whose dedup key was seen
	// less than this long ago.
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	// DrainSpacing is the pause between consecutive immediate dispatches.
	DrainSpacing time.Duration `koanf:"drain_spacing"`

	// DispatchTimeout bounds a single ingestion endpoint call. An
	// unresponsive endpoint fails the dispatch instead of stalling the
	// queue indefinitely.
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"`

	// MaxAttempts is the retry budget per batch. A batch failing this many
	// consecutive dispatches is dead-lettered instead of retried forever.
	MaxAttempts int `koanf:"max_attempts"`

	// BackoffBase and BackoffCap shape the exponential retry backoff:
	// the Nth retry waits min(BackoffBase << (N-1), BackoffCap).
	BackoffBase time.Duration `koanf:"backoff_base"`
	BackoffCap  time.Duration `koanf:"backoff_cap"`
}

// DefaultConfig returns production defaults for the batching engine.
func DefaultConfig() Config {
	return Config{
		DebounceDelay:   800 * time.Millisecond,
		DuplicateWindow: time.Second,
		DrainSpacing:    100 * time.Millisecond,
		DispatchTimeout: 10 * time.Second,
		MaxAttempts:     5,
		BackoffBase:     time.Second,
		BackoffCap:      30 * time.Second,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = def.DebounceDelay
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = def.DuplicateWindow
	}
	if c.DrainSpacing <= 0 {
		c.DrainSpacing = def.DrainSpacing
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = def.DispatchTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = def.BackoffCap
	}
	return c
}

// backoff returns the delay before the given retry attempt (1-based).
func (c Config) backoff(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.BackoffCap {
			return c.BackoffCap
		}
	}
	if d > c.BackoffCap {
		return c.BackoffCap
	}
	return d
}
