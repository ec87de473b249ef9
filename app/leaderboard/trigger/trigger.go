// Package trigger turns timers and change notifications into refresh
// requests.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/notify"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
)

// Requester accepts asynchronous refresh requests.
type Requester interface {
	Request(source coordinator.TriggerSource) bool
}

// Group fans a request out to every member.
type Group []Requester

// Request forwards source to all members and reports whether any of them
// queued it.
func (g Group) Request(source coordinator.TriggerSource) bool {
	queued := false
	for _, r := range g {
		if r.Request(source) {
			queued = true
		}
	}
	return queued
}

// RunTimer requests a refresh every interval until ctx is cancelled. Ticks
// are scheduled from the previous tick, so a slow refresh never shifts the
// schedule.
func RunTimer(ctx context.Context, r Requester, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("timer interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "Refresh timer started", attr.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !r.Request(coordinator.SourceTimer) {
				logger.DebugContext(ctx, "Timer tick skipped")
			}
		}
	}
}

// ErrSubscriptionClosed is returned by Forward when the notifier stream ends
// before ctx is cancelled.
var ErrSubscriptionClosed = errors.New("change notification stream closed")

// Forward subscribes to change notifications and turns each one into a
// refresh request. Bursts are coalesced by the receiving coordinators.
func Forward(ctx context.Context, r Requester, sub notify.Subscriber, logger *slog.Logger) error {
	events, err := sub.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change notifications: %w", err)
	}

	logger.InfoContext(ctx, "Listening for metric change notifications")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			queued := r.Request(coordinator.SourceNotifier)
			logger.DebugContext(ctx, "Metric change received",
				attr.String("event_id", ev.ID),
				attr.String("metric", ev.Metric),
				attr.Bool("queued", queued),
			)
		}
	}
}
