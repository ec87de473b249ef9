package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/notify"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/scores"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
)

// Backends holds the shared clients every driver is built from, plus the
// score store, pointer store and notifier selected by configuration.
type Backends struct {
	Scores     scores.Store
	Pointers   pointer.Store
	Subscriber notify.Subscriber // nil when notifications are disabled
	Publisher  notify.Publisher

	logger  *slog.Logger
	nc      *nats.Conn
	redis   redis.UniversalClient
	closers []func() error
}

// OpenBackends connects everything cfg selects. On error, whatever was
// already opened is closed.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	return openBackends(ctx, cfg, logger, true)
}

// OpenScoreBackends connects only the score store and the notifier it
// announces on. Embedded pointer stores hold an exclusive lock, so tools that
// run next to a serving bot use this instead of OpenBackends.
func OpenScoreBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	return openBackends(ctx, cfg, logger, false)
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger, withPointers bool) (_ *Backends, err error) {
	b := &Backends{logger: logger, Publisher: notify.Nop{}}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if err := b.openNotifier(cfg); err != nil {
		return nil, err
	}
	if withPointers {
		if err := b.openPointers(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if err := b.openScores(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backends) natsConn(url string) (*nats.Conn, error) {
	if b.nc != nil {
		return b.nc, nil
	}
	if url == "" {
		return nil, errors.New("nats url is not configured")
	}
	nc, err := nats.Connect(url,
		nats.Name("discord-leaderboard-bot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS disconnected", attr.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.nc = nc
	b.closers = append(b.closers, func() error { nc.Close(); return nil })
	return nc, nil
}

func (b *Backends) redisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is not configured")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	b.redis = client
	b.closers = append(b.closers, client.Close)
	return client, nil
}

func (b *Backends) openNotifier(cfg *config.Config) error {
	switch cfg.Notifier.Driver {
	case "nats":
		pub, sub, err := notify.NewNATSPubSub(cfg.NATS.URL, b.logger)
		if err != nil {
			return err
		}
		b.Subscriber = notify.NewWatermillSubscriber(sub, cfg.Notifier.Topic, b.logger)
		b.Publisher = notify.NewWatermillPublisher(pub, cfg.Notifier.Topic)
		b.closers = append(b.closers, b.Subscriber.Close, b.Publisher.Close)
	case "redis":
		client, err := b.redisClient(cfg.Redis)
		if err != nil {
			return err
		}
		b.Subscriber = notify.NewRedisSubscriber(client, cfg.Notifier.Topic, b.logger)
		b.Publisher = notify.NewRedisPublisher(client, cfg.Notifier.Topic)
	case "", "none":
	default:
		return fmt.Errorf("unknown notifier driver %q", cfg.Notifier.Driver)
	}
	b.logger.Info("Change notifier configured", attr.String("driver", cfg.Notifier.Driver))
	return nil
}

func (b *Backends) openPointers(ctx context.Context, cfg *config.Config) error {
	var (
		store pointer.Store
		err   error
	)
	switch cfg.PointerStore.Driver {
	case "jetstream":
		nc, connErr := b.natsConn(cfg.NATS.URL)
		if connErr != nil {
			return connErr
		}
		js, jsErr := jetstream.New(nc)
		if jsErr != nil {
			return fmt.Errorf("failed to create JetStream context: %w", jsErr)
		}
		store, err = pointer.NewJetStreamStore(ctx, js, cfg.PointerStore.Bucket)
	case "redis":
		client, clientErr := b.redisClient(cfg.Redis)
		if clientErr != nil {
			return clientErr
		}
		store = pointer.NewRedisStore(client)
	case "pebble":
		store, err = pointer.NewPebbleStore(cfg.PointerStore.Path)
	case "file":
		store, err = pointer.NewFileStore(cfg.PointerStore.Path)
	case "memory":
		store = pointer.NewMemoryStore()
	default:
		return fmt.Errorf("unknown pointer_store driver %q", cfg.PointerStore.Driver)
	}
	if err != nil {
		return err
	}
	b.Pointers = store
	b.closers = append(b.closers, store.Close)
	b.logger.Info("Pointer store configured", attr.String("driver", cfg.PointerStore.Driver))
	return nil
}

func (b *Backends) openScores(cfg *config.Config) error {
	switch cfg.ScoreStore.Driver {
	case "postgres":
		db, err := scores.OpenPostgres(cfg.ScoreStore.DSN)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get sql.DB: %w", err)
		}
		b.closers = append(b.closers, sqlDB.Close)
		b.Scores = scores.NewGormStore(db, cfg.Leaderboard.LevelUnit, b.Publisher, b.logger)
	case "memory":
		b.logger.Warn("Using in-memory score store; scores are lost on restart")
		b.Scores = scores.NewMemoryStore(cfg.Leaderboard.LevelUnit, b.Publisher, b.logger)
	default:
		return fmt.Errorf("unknown score_store driver %q", cfg.ScoreStore.Driver)
	}
	b.logger.Info("Score store configured", attr.String("driver", cfg.ScoreStore.Driver))
	return nil
}

// Close releases every backend in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
