package scores

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/notify"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Stats is the per-entity metrics row.
type Stats struct {
	EntityID     string `gorm:"primaryKey;size:32"`
	DisplayLabel string `gorm:"size:100"`
	Balance      int64  `gorm:"not null;default:0;index"`
	Experience   int64  `gorm:"not null;default:0;index"`
	UpdatedAt    time.Time
}

func (Stats) TableName() string { return "leaderboard_stats" }

// OpenPostgres connects with gorm and migrates the stats table.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&Stats{}); err != nil {
		return nil, fmt.Errorf("failed to migrate leaderboard_stats: %w", err)
	}
	return db, nil
}

type gormStore struct {
	db        *gorm.DB
	levelUnit int64
	announcer notify.Publisher
	logger    *slog.Logger
}

// NewGormStore returns a Store backed by the leaderboard_stats table.
func NewGormStore(db *gorm.DB, levelUnit int64, announcer notify.Publisher, logger *slog.Logger) Store {
	if announcer == nil {
		announcer = notify.Nop{}
	}
	return &gormStore{db: db, levelUnit: levelUnit, announcer: announcer, logger: logger}
}

// rankedQuery orders rows the same way board.Compare does so the LIMIT cut
// keeps exactly the entries that rank highest.
func rankedQuery(db *gorm.DB, metric board.Metric, limit int) (*gorm.DB, error) {
	q := db.Model(&Stats{})
	switch metric {
	case board.MetricBalance:
		q = q.Order("balance DESC").Order("experience DESC")
	case board.MetricLevel:
		q = q.Order("experience DESC")
	default:
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	for _, o := range idOrder {
		q = q.Order(o)
	}
	return q.Limit(limit), nil
}

// idOrder mirrors board.CompareIDs: digit-only ids first, compared by length
// and text with leading zeros trimmed, then everything else bytewise.
var idOrder = []string{
	`CASE WHEN entity_id ~ '^[0-9]+$' THEN 0 ELSE 1 END ASC`,
	`CASE WHEN entity_id ~ '^[0-9]+$' THEN LENGTH(LTRIM(entity_id, '0')) ELSE 0 END ASC`,
	`CASE WHEN entity_id ~ '^[0-9]+$' THEN LTRIM(entity_id, '0') ELSE '' END COLLATE "C" ASC`,
	`entity_id COLLATE "C" ASC`,
}

func (s *gormStore) TopByMetric(ctx context.Context, metric board.Metric, limit int) ([]board.RankedEntry, error) {
	q, err := rankedQuery(s.db.WithContext(ctx), metric, limit)
	if err != nil {
		return nil, err
	}

	var rows []Stats
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: top %s: %w", lberrors.ErrStoreUnavailable, metric, err)
	}

	entries := make([]board.RankedEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(metric, row.EntityID, row.DisplayLabel, row.Balance, row.Experience, s.levelUnit))
	}
	return board.Rank(entries), nil
}

func (s *gormStore) ApplyDelta(ctx context.Context, d Delta) error {
	if d.EntityID == "" {
		return errors.New("delta requires an entity id")
	}

	assignments := map[string]interface{}{
		"balance":    gorm.Expr("leaderboard_stats.balance + ?", d.Balance),
		"experience": gorm.Expr("leaderboard_stats.experience + ?", d.Experience),
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}
	if d.DisplayLabel != "" {
		assignments["display_label"] = d.DisplayLabel
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&Stats{
		EntityID:     d.EntityID,
		DisplayLabel: d.DisplayLabel,
		Balance:      d.Balance,
		Experience:   d.Experience,
	}).Error
	if err != nil {
		return fmt.Errorf("%w: apply delta for %s: %w", lberrors.ErrStoreUnavailable, d.EntityID, err)
	}

	announce(ctx, s.announcer, s.logger, d)
	return nil
}

// announce is best effort: the timer trigger catches anything a lost
// notification misses.
func announce(ctx context.Context, p notify.Publisher, logger *slog.Logger, d Delta) {
	for _, metric := range changedMetrics(d) {
		if err := p.Announce(ctx, notify.NewEvent(string(metric), d.EntityID)); err != nil {
			logger.WarnContext(ctx, "Failed to announce metric change",
				attr.String("entity_id", d.EntityID),
				attr.String("metric", string(metric)),
				attr.Error(err),
			)
		}
	}
}

func changedMetrics(d Delta) []board.Metric {
	var out []board.Metric
	if d.Balance != 0 {
		out = append(out, board.MetricBalance)
	}
	if d.Experience != 0 {
		out = append(out, board.MetricLevel)
	}
	if len(out) == 0 {
		out = append(out, board.MetricBalance)
	}
	return out
}
