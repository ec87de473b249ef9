// Package metrics observes refresh attempts: an in-process sliding window
// for the status page and OpenTelemetry instruments for export.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
)

// DefaultWindowSize is how many recent successful durations are averaged.
const DefaultWindowSize = 50

// Window keeps running counters and a bounded ring of recent successful
// durations. It is safe for concurrent use.
type Window struct {
	mu        sync.Mutex
	successes int64
	failures  int64
	reasons   map[string]int64
	durations []time.Duration
	next      int
	filled    bool
	last      time.Time
}

// WindowStats is a snapshot of a Window.
type WindowStats struct {
	Successes       int64            `json:"successes"`
	Failures        int64            `json:"failures"`
	FailureReasons  map[string]int64 `json:"failure_reasons,omitempty"`
	AverageDuration time.Duration    `json:"average_duration_ns"`
	Samples         int              `json:"samples"`
	LastAttemptAt   time.Time        `json:"last_attempt_at,omitzero"`
}

// NewWindow creates a Window averaging the last size durations.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{
		reasons:   make(map[string]int64),
		durations: make([]time.Duration, size),
	}
}

func (w *Window) RecordSuccess(_ context.Context, a coordinator.Attempt) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.successes++
	w.last = a.StartedAt
	w.durations[w.next] = a.Duration
	w.next = (w.next + 1) % len(w.durations)
	if w.next == 0 {
		w.filled = true
	}
}

func (w *Window) RecordFailure(_ context.Context, a coordinator.Attempt) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures++
	w.last = a.StartedAt
	reason := a.Reason
	if reason == "" {
		reason = "unknown"
	}
	w.reasons[reason]++
}

// Stats returns the counters and the average of the recorded durations.
func (w *Window) Stats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.filled {
		n = len(w.durations)
	}
	var total time.Duration
	for _, d := range w.durations[:n] {
		total += d
	}

	s := WindowStats{
		Successes:     w.successes,
		Failures:      w.failures,
		Samples:       n,
		LastAttemptAt: w.last,
	}
	if n > 0 {
		s.AverageDuration = total / time.Duration(n)
	}
	if len(w.reasons) > 0 {
		s.FailureReasons = make(map[string]int64, len(w.reasons))
		for k, v := range w.reasons {
			s.FailureReasons[k] = v
		}
	}
	return s
}
