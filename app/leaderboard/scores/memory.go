package scores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/notify"
)

// MemoryStore keeps stats in process memory. It backs the "memory" score
// store driver used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	stats     map[string]Stats
	levelUnit int64
	announcer notify.Publisher
	logger    *slog.Logger
}

func NewMemoryStore(levelUnit int64, announcer notify.Publisher, logger *slog.Logger) *MemoryStore {
	if announcer == nil {
		announcer = notify.Nop{}
	}
	return &MemoryStore{
		stats:     make(map[string]Stats),
		levelUnit: levelUnit,
		announcer: announcer,
		logger:    logger,
	}
}

func (m *MemoryStore) TopByMetric(_ context.Context, metric board.Metric, limit int) ([]board.RankedEntry, error) {
	if metric != board.MetricBalance && metric != board.MetricLevel {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}

	m.mu.RLock()
	entries := make([]board.RankedEntry, 0, len(m.stats))
	for _, row := range m.stats {
		entries = append(entries, toEntry(metric, row.EntityID, row.DisplayLabel, row.Balance, row.Experience, m.levelUnit))
	}
	m.mu.RUnlock()

	return board.Top(entries, limit), nil
}

func (m *MemoryStore) ApplyDelta(ctx context.Context, d Delta) error {
	if d.EntityID == "" {
		return errors.New("delta requires an entity id")
	}

	m.mu.Lock()
	row := m.stats[d.EntityID]
	row.EntityID = d.EntityID
	if d.DisplayLabel != "" {
		row.DisplayLabel = d.DisplayLabel
	}
	row.Balance += d.Balance
	row.Experience += d.Experience
	m.stats[d.EntityID] = row
	m.mu.Unlock()

	announce(ctx, m.announcer, m.logger, d)
	return nil
}
