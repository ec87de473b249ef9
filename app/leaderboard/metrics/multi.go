package metrics

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
)

// Multi fans attempts out to several recorders. A panicking recorder is
// logged and skipped so the others still see the attempt.
type Multi struct {
	recorders []coordinator.Recorder
	logger    *slog.Logger
}

// NewMulti combines recorders, ignoring nil entries.
func NewMulti(logger *slog.Logger, recorders ...coordinator.Recorder) *Multi {
	m := &Multi{logger: logger}
	for _, r := range recorders {
		if r != nil {
			m.recorders = append(m.recorders, r)
		}
	}
	return m
}

func (m *Multi) RecordSuccess(ctx context.Context, a coordinator.Attempt) {
	for _, r := range m.recorders {
		m.safely(ctx, func() { r.RecordSuccess(ctx, a) })
	}
}

func (m *Multi) RecordFailure(ctx context.Context, a coordinator.Attempt) {
	for _, r := range m.recorders {
		m.safely(ctx, func() { r.RecordFailure(ctx, a) })
	}
}

func (m *Multi) safely(ctx context.Context, fn func()) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.ErrorContext(ctx, "Recovered from panic in metrics recorder", attr.Any("panic", r))
		}
	}()
	fn()
}
