// Engage - Commerce Behavioral Tracking and Content Personalization
// Copyright 2026 Platewise
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/platewise/engage

// Package batcher implements the event batching and deduplication engine.
//
// Interaction events are validated, deduplicated on (kind, productName,
// productId), and routed into two independently timed queues:
//
//   - aggregable (views, hovers): debounced, a burst settles into a single
//     multi-event dispatch
//   - immediate (clicks, purchases): drained one event per dispatch in
//     strict FIFO order
//
// Each queue moves through an explicit idle -> pending -> flushing cycle
// driven by a Clock, so the timing behavior is unit-testable with a fake
// clock. Failed dispatches are requeued at the front of their originating
// queue and retried with exponential backoff up to a bounded attempt
// budget; batches that exhaust the budget are dead-lettered.
package batcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/platewise/engage/internal/events"
	"github.com/platewise/engage/internal/logging"
	"github.com/platewise/engage/internal/metrics"
)

// Dedup entries older than the duplicate window are pruned once the map
// grows past this size, keeping a long-lived session from leaking memory.
const dedupPruneThreshold = 256

// Dispatcher delivers a batch of events to the ingestion endpoint.
// An error means the whole batch was rejected; partial acceptance is not
// part of the contract.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch []events.InteractionEvent) error
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	AggregableCount  int  `json:"aggregableCount"`
	ImmediateCount   int  `json:"immediateCount"`
	Draining         bool `json:"isDraining"`
	DroppedInvalid   int  `json:"droppedInvalid"`
	DroppedDuplicate int  `json:"droppedDuplicate"`
	DeadLettered     int  `json:"deadLettered"`
}

// queueState tracks where a queue is in its flush cycle.
type queueState int

const (
	stateIdle queueState = iota
	statePending
	stateFlushing
)

const (
	queueAggregable = "aggregable"
	queueImmediate  = "immediate"
)

// Engine is the event batching and deduplication engine. One instance
// serves the whole process; Submit, Clear, and Stats are safe for
// concurrent use and never block on network I/O.
type Engine struct {
	cfg        Config
	dispatcher Dispatcher
	clock      Clock
	logger     zerolog.Logger

	// onDeadLetter receives batches dropped after exhausting the retry
	// budget. It must not call back into the engine.
	onDeadLetter func([]events.InteractionEvent)

	mu         sync.Mutex
	aggregable []events.InteractionEvent
	immediate  []events.InteractionEvent
	lastSeen   map[string]time.Time

	// gen increments on Clear. A flush that started under an older
	// generation discards its outcome instead of requeueing or re-arming.
	gen uint64

	aggState    queueState
	aggTimer    Timer
	aggAttempts int

	draining    bool
	drainTimer  Timer
	immAttempts int

	droppedInvalid   int
	droppedDuplicate int
	deadLettered     int
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock replaces the system clock, typically with a fake in tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the default component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithDeadLetterFunc installs a hook receiving dead-lettered batches.
func WithDeadLetterFunc(f func([]events.InteractionEvent)) Option {
	return func(e *Engine) { e.onDeadLetter = f }
}

// NewEngine creates an engine dispatching through d. Zero-valued config
// fields fall back to DefaultConfig.
func NewEngine(cfg Config, d Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg.withDefaults(),
		dispatcher: d,
		clock:      SystemClock(),
		logger:     logging.With().Str("component", "batcher").Logger(),
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates, deduplicates, and routes one event. Invalid and
// near-duplicate events are dropped silently (counted, never errored);
// accepted events are queued and Submit returns without waiting for any
// dispatch.
func (e *Engine) Submit(ev events.InteractionEvent) {
	if err := ev.Validate(); err != nil {
		e.mu.Lock()
		e.droppedInvalid++
		e.mu.Unlock()
		metrics.EventsDropped.WithLabelValues("invalid").Inc()
		e.logger.Debug().Err(err).Str("kind", string(ev.Kind)).Msg("event dropped: invalid")
		return
	}

	e.mu.Lock()
	now := e.clock.Now()
	key := ev.DedupKey()
	if last, ok := e.lastSeen[key]; ok && now.Sub(last) < e.cfg.DuplicateWindow {
		e.droppedDuplicate++
		e.mu.Unlock()
		metrics.EventsDropped.WithLabelValues("duplicate").Inc()
		e.logger.Debug().Str("dedup_key", key).Msg("event dropped: duplicate")
		return
	}
	e.lastSeen[key] = now
	e.pruneDedupLocked(now)

	if ev.Kind.Aggregable() {
		e.aggregable = append(e.aggregable, ev)
		e.armAggregableLocked(e.cfg.DebounceDelay)
	} else {
		e.immediate = append(e.immediate, ev)
		if !e.draining {
			e.draining = true
			e.drainTimer = e.clock.AfterFunc(e.cfg.DebounceDelay, e.drainStep)
		}
	}
	e.updateGaugesLocked()
	e.mu.Unlock()

	metrics.EventsSubmitted.WithLabelValues(string(ev.Kind)).Inc()
}

// Clear empties both queues, resets the dedup map, and cancels pending
// timers. Unflushed events are discarded.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.aggTimer != nil {
		e.aggTimer.Stop()
		e.aggTimer = nil
	}
	if e.drainTimer != nil {
		e.drainTimer.Stop()
		e.drainTimer = nil
	}
	e.gen++
	e.aggregable = nil
	e.immediate = nil
	e.lastSeen = make(map[string]time.Time)
	e.aggState = stateIdle
	e.aggAttempts = 0
	e.draining = false
	e.immAttempts = 0
	e.updateGaugesLocked()
}

// Stats returns a non-blocking snapshot of queue depths and drop counts.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		AggregableCount:  len(e.aggregable),
		ImmediateCount:   len(e.immediate),
		Draining:         e.draining,
		DroppedInvalid:   e.droppedInvalid,
		DroppedDuplicate: e.droppedDuplicate,
		DeadLettered:     e.deadLettered,
	}
}

// armAggregableLocked (re)starts the aggregable flush timer. A pending
// timer is superseded, so a burst of submissions coalesces into the flush
// scheduled from the last one.
func (e *Engine) armAggregableLocked(d time.Duration) {
	if e.aggTimer != nil {
		e.aggTimer.Stop()
	}
	e.aggState = statePending
	e.aggTimer = e.clock.AfterFunc(d, e.flushAggregable)
}

// flushAggregable dispatches the whole aggregable queue as one batch.
func (e *Engine) flushAggregable() {
	e.mu.Lock()
	if len(e.aggregable) == 0 {
		e.aggState = stateIdle
		e.aggTimer = nil
		e.mu.Unlock()
		return
	}
	batch := e.aggregable
	e.aggregable = nil
	e.aggState = stateFlushing
	e.aggTimer = nil
	gen := e.gen
	e.updateGaugesLocked()
	e.mu.Unlock()

	err := e.dispatch(queueAggregable, batch)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		// Clear ran while the batch was in flight; the outcome belongs to
		// a discarded generation.
		return
	}
	if err != nil {
		e.aggAttempts++
		if e.aggAttempts >= e.cfg.MaxAttempts {
			e.deadLetterLocked(queueAggregable, batch)
			e.aggAttempts = 0
			if len(e.aggregable) > 0 {
				e.armAggregableLocked(e.cfg.DebounceDelay)
			} else if e.aggState == stateFlushing {
				e.aggState = stateIdle
			}
		} else {
			// Requeue at the front so the failed batch retries ahead of
			// anything submitted meanwhile.
			e.aggregable = append(batch, e.aggregable...)
			metrics.DispatchRetries.WithLabelValues(queueAggregable).Inc()
			e.armAggregableLocked(e.cfg.backoff(e.aggAttempts))
		}
		e.updateGaugesLocked()
		return
	}

	e.aggAttempts = 0
	e.logger.Debug().Int("events", len(batch)).Msg("aggregable batch dispatched")
	// Submissions during the flush re-armed the timer themselves; only
	// settle back to idle when nothing is pending.
	if e.aggState == stateFlushing {
		e.aggState = stateIdle
	}
	e.updateGaugesLocked()
}

// drainStep pops and dispatches exactly one immediate event, then
// schedules the next step. The drain flag clears once the queue is empty.
func (e *Engine) drainStep() {
	e.mu.Lock()
	if len(e.immediate) == 0 {
		e.draining = false
		e.drainTimer = nil
		e.mu.Unlock()
		return
	}
	ev := e.immediate[0]
	e.immediate = e.immediate[1:]
	gen := e.gen
	e.updateGaugesLocked()
	e.mu.Unlock()

	err := e.dispatch(queueImmediate, []events.InteractionEvent{ev})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		// Clear ran mid-dispatch: no requeue, and the drain timer stays
		// cancelled.
		return
	}
	if err != nil {
		e.immAttempts++
		if e.immAttempts >= e.cfg.MaxAttempts {
			e.deadLetterLocked(queueImmediate, []events.InteractionEvent{ev})
			e.immAttempts = 0
		} else {
			// Back to the head: the next pop retries the same event.
			e.immediate = append([]events.InteractionEvent{ev}, e.immediate...)
			metrics.DispatchRetries.WithLabelValues(queueImmediate).Inc()
		}
	} else {
		e.immAttempts = 0
		e.logger.Debug().Str("event_id", ev.ID).Msg("immediate event dispatched")
	}
	e.updateGaugesLocked()
	e.drainTimer = e.clock.AfterFunc(e.cfg.DrainSpacing+e.cfg.DebounceDelay, e.drainStep)
}

// dispatch delivers one batch with a bounded timeout and records metrics.
func (e *Engine) dispatch(queue string, batch []events.InteractionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DispatchTimeout)
	defer cancel()

	start := time.Now()
	err := e.dispatcher.Dispatch(ctx, batch)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DispatchesTotal.WithLabelValues(queue, "failure").Inc()
		e.logger.Warn().Err(err).Str("queue", queue).Int("events", len(batch)).Msg("dispatch failed")
		return err
	}
	metrics.DispatchesTotal.WithLabelValues(queue, "success").Inc()
	return nil
}

// deadLetterLocked drops a batch that exhausted its retry budget.
func (e *Engine) deadLetterLocked(queue string, batch []events.InteractionEvent) {
	e.deadLettered += len(batch)
	metrics.DeadLetteredEvents.Add(float64(len(batch)))
	e.logger.Error().
		Str("queue", queue).
		Int("events", len(batch)).
		Int("attempts", e.cfg.MaxAttempts).
		Msg("batch dead-lettered after exhausting retry budget")
	if e.onDeadLetter != nil {
		e.onDeadLetter(batch)
	}
}

// pruneDedupLocked evicts dedup entries older than the duplicate window
// once the map grows past the prune threshold.
func (e *Engine) pruneDedupLocked(now time.Time) {
	if len(e.lastSeen) <= dedupPruneThreshold {
		return
	}
	for key, seen := range e.lastSeen {
		if now.Sub(seen) >= e.cfg.DuplicateWindow {
			delete(e.lastSeen, key)
		}
	}
}

func (e *Engine) updateGaugesLocked() {
	metrics.QueueDepth.WithLabelValues(queueAggregable).Set(float64(len(e.aggregable)))
	metrics.QueueDepth.WithLabelValues(queueImmediate).Set(float64(len(e.immediate)))
}
