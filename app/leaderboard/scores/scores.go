// Package scores is the score store client: ranked reads for the refresh
// coordinator and delta mutations that announce changes to subscribers.
package scores

import (
	"context"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
)

// Reader returns the top entries of a metric in ranked order. Failures to
// reach the backing store are reported as lberrors.ErrStoreUnavailable.
type Reader interface {
	TopByMetric(ctx context.Context, metric board.Metric, limit int) ([]board.RankedEntry, error)
}

// Delta is an increment applied to one entity's metrics.
type Delta struct {
	EntityID     string
	DisplayLabel string
	Balance      int64
	Experience   int64
}

// Store reads ranked data and applies deltas.
type Store interface {
	Reader
	ApplyDelta(ctx context.Context, d Delta) error
}

// toEntry projects raw metrics into a ranked entry for metric.
func toEntry(metric board.Metric, id, label string, balance, experience, levelUnit int64) board.RankedEntry {
	entry := board.RankedEntry{ID: id, DisplayLabel: label}
	switch metric {
	case board.MetricLevel:
		entry.Value = board.Level(experience, levelUnit)
		entry.Secondary = experience
	default:
		entry.Value = balance
		entry.Secondary = experience
	}
	return entry
}
