// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

package batcher

import "time"

// Clock abstracts time for the engine so debounce and drain behavior can be
// driven by a fake clock in tests instead of real timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses and returns a handle
	// that can cancel the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled call.
type Timer interface {
	// Stop cancels the pending call. It reports whether the call was
	// still pending.
	Stop() bool
}

type systemClock struct{}

type systemTimer struct {
	t *time.Timer
}

// SystemClock returns a Clock backed by the runtime's real timers.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return &systemTimer{t: time.AfterFunc(d, f)}
}

func (t *systemTimer) Stop() bool {
	return t.t.Stop()
}
