// Package bot wires the leaderboard bot together: backends, one refresh
// coordinator per board, triggers, the HTTP surface and the Discord gateway.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	discord "github.com/Black-And-White-Club/discord-leaderboard-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/health"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/interactions"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/command"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/delivery"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/metrics"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/trigger"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	cache "github.com/Black-And-White-Club/discord-leaderboard-bot/bigcache"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/config"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName = "github.com/Black-And-White-Club/discord-leaderboard-bot"
	// defaultCommandSyncDelay spaces out per-guild command registration on
	// Ready so large guild lists don't trip the REST rate limit.
	defaultCommandSyncDelay = 500 * time.Millisecond
)

// Telemetry carries the providers built in main.
type Telemetry struct {
	Tracer         trace.TracerProvider
	Meter          metric.MeterProvider
	MetricsHandler http.Handler
}

type commandRegistrar func(ctx context.Context, s discord.Session, logger *slog.Logger, guildID string) error

type DiscordBot struct {
	Session  discord.Session
	Logger   *slog.Logger
	Config   *config.Config
	Backends *Backends

	coordinators []*coordinator.Coordinator
	registry     *interactions.Registry
	health       *health.Handler
	cooldownData *cache.Cache
	sessionOpen  atomic.Bool

	commandRegistrar commandRegistrar
	commandSyncDelay time.Duration
}

// NewSession creates the discordgo session with the intents the bot needs.
// Only guild events are required: slash commands arrive as interactions.
func NewSession(token string, logger *slog.Logger) (*discord.DiscordSession, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return discord.NewDiscordSession(s, logger), nil
}

// NewDiscordBot builds one coordinator per configured board on top of
// backends. Nothing runs until Run is called.
func NewDiscordBot(ctx context.Context, session discord.Session, cfg *config.Config, logger *slog.Logger, backends *Backends, tel Telemetry, opts ...coordinator.Option) (*DiscordBot, error) {
	if tel.Tracer == nil {
		tel.Tracer = noop.NewTracerProvider()
	}
	if tel.Meter == nil {
		tel.Meter = metricnoop.NewMeterProvider()
	}
	tracer := tel.Tracer.Tracer(tracerName)

	otelRecorder, err := metrics.NewOTel(tel.Meter)
	if err != nil {
		return nil, err
	}

	bot := &DiscordBot{
		Session:          session,
		Logger:           logger,
		Config:           cfg,
		Backends:         backends,
		registry:         interactions.NewRegistry(logger),
		commandRegistrar: discord.RegisterCommands,
		commandSyncDelay: defaultCommandSyncDelay,
	}

	channel := delivery.NewDiscordChannel(session, logger, delivery.WithTracer(tracer))
	healthOpts := []health.Option{
		health.WithLogger(logger),
		health.WithSessionReady(bot.sessionOpen.Load),
		health.WithMetrics(tel.MetricsHandler),
	}
	refreshers := make([]command.Refresher, 0, len(cfg.Leaderboard.Boards))

	for _, bc := range cfg.Leaderboard.Boards {
		boardCfg, err := coordinatorConfig(cfg.Leaderboard, bc)
		if err != nil {
			return nil, err
		}
		window := metrics.NewWindow(metrics.DefaultWindowSize)
		coordOpts := append([]coordinator.Option{
			coordinator.WithLogger(logger),
			coordinator.WithTracer(tracer),
			coordinator.WithRecorder(metrics.NewMulti(logger, window, otelRecorder)),
		}, opts...)

		c := coordinator.New(boardCfg, backends.Scores, backends.Pointers, channel, coordOpts...)
		bot.coordinators = append(bot.coordinators, c)
		refreshers = append(refreshers, c)
		healthOpts = append(healthOpts, health.WithBoards(health.Board{Coordinator: c, Window: window}))
	}

	var cooldown *cache.Cooldown
	if cfg.Discord.CommandCooldown > 0 {
		bot.cooldownData, err = cache.NewCache(ctx, cfg.Discord.CommandCooldown)
		if err != nil {
			return nil, err
		}
		cooldown = cache.NewCooldown(bot.cooldownData, cfg.Discord.CommandCooldown)
	}
	command.NewHandler(session, refreshers, cooldown, logger, tracer).Register(bot.registry)
	bot.health = health.NewHandler(cfg.Service.Version, healthOpts...)

	logger.Info("Leaderboard bot created", attr.Int("boards", len(bot.coordinators)))
	return bot, nil
}

func coordinatorConfig(lb config.LeaderboardConfig, bc config.BoardConfig) (coordinator.Config, error) {
	cfg := coordinator.Config{
		Name:          bc.Name,
		ChannelID:     bc.ChannelID,
		Title:         bc.Title,
		TopN:          bc.TopN,
		LevelUnit:     lb.LevelUnit,
		RetryAttempts: lb.RetryAttempts,
		RetryDelay:    lb.RetryDelay,
	}
	if cfg.TopN == 0 {
		cfg.TopN = lb.TopN
	}
	for _, name := range bc.Metrics {
		m, err := board.ParseMetric(name)
		if err != nil {
			return coordinator.Config{}, fmt.Errorf("board %s: %w", bc.Name, err)
		}
		cfg.Metrics = append(cfg.Metrics, m)
	}
	return cfg, nil
}

// Coordinators returns the per-board coordinators in configuration order.
func (bot *DiscordBot) Coordinators() []*coordinator.Coordinator {
	return bot.coordinators
}

// Coordinator returns the coordinator of the named board.
func (bot *DiscordBot) Coordinator(name string) (*coordinator.Coordinator, bool) {
	for _, c := range bot.coordinators {
		if strings.EqualFold(c.Name(), name) {
			return c, true
		}
	}
	return nil, false
}

// StartCoordinators starts every coordinator. Already started coordinators
// are left alone.
func (bot *DiscordBot) StartCoordinators(ctx context.Context) error {
	for _, c := range bot.coordinators {
		if err := c.Start(ctx); err != nil && !errors.Is(err, coordinator.ErrAlreadyStarted) {
			return fmt.Errorf("failed to start coordinator %s: %w", c.Name(), err)
		}
	}
	return nil
}

// StopCoordinators stops every coordinator and waits for in-flight attempts.
func (bot *DiscordBot) StopCoordinators() {
	for _, c := range bot.coordinators {
		_ = c.Stop()
	}
}

// Run serves until ctx is cancelled or a component fails.
func (bot *DiscordBot) Run(ctx context.Context) error {
	bot.Logger.InfoContext(ctx, "Starting leaderboard bot")

	if err := bot.StartCoordinators(ctx); err != nil {
		return err
	}
	defer bot.StopCoordinators()

	g, ctx := errgroup.WithContext(ctx)

	requesters := make(trigger.Group, 0, len(bot.coordinators))
	for _, c := range bot.coordinators {
		requesters = append(requesters, c)
	}

	g.Go(func() error {
		return trigger.RunTimer(ctx, requesters, bot.Config.Leaderboard.Interval, bot.Logger)
	})

	if sub := bot.Backends.Subscriber; sub != nil {
		g.Go(func() error {
			err := trigger.Forward(ctx, requesters, sub, bot.Logger)
			if errors.Is(err, trigger.ErrSubscriptionClosed) {
				// The timer keeps boards fresh without notifications.
				bot.Logger.WarnContext(ctx, "Change notifications stopped, relying on timer", attr.Error(err))
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		return bot.health.StartServer(ctx, bot.Config.HTTP.Addr)
	})

	g.Go(func() error {
		if err := bot.openGateway(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})

	err := g.Wait()
	bot.Logger.Info("Leaderboard bot stopped", attr.Error(err))
	return err
}

func (bot *DiscordBot) openGateway(ctx context.Context) error {
	bot.Session.AddHandler(bot.registry.HandleInteraction)
	bot.Session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		bot.Logger.Info("Discord bot is connected and ready", attr.Int("guilds", len(r.Guilds)))
		go bot.syncGuildCommands(ctx, r.Guilds)
	})

	if err := bot.Session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	bot.sessionOpen.Store(true)
	bot.Logger.InfoContext(ctx, "Discord gateway connected")
	return nil
}

// syncGuildCommands registers slash commands in the configured guild, or in
// every guild from the Ready event when none is configured. A failure in one
// guild does not stop the others.
func (bot *DiscordBot) syncGuildCommands(ctx context.Context, guilds []*discordgo.Guild) {
	ids := make([]string, 0, len(guilds))
	if bot.Config != nil && bot.Config.Discord.GuildID != "" {
		ids = append(ids, bot.Config.Discord.GuildID)
	} else {
		for _, g := range guilds {
			if g != nil && g.ID != "" {
				ids = append(ids, g.ID)
			}
		}
	}

	for n, guildID := range ids {
		if ctx.Err() != nil {
			return
		}
		if n > 0 && bot.commandSyncDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(bot.commandSyncDelay):
			}
		}
		if err := bot.commandRegistrar(ctx, bot.Session, bot.Logger, guildID); err != nil {
			bot.Logger.ErrorContext(ctx, "Failed to register slash commands",
				attr.String("guild_id", guildID),
				attr.Error(err),
			)
			continue
		}
		bot.Logger.InfoContext(ctx, "Slash commands registered", attr.String("guild_id", guildID))
	}
}

// Close releases the gateway, the cooldown cache and the backends.
func (bot *DiscordBot) Close() error {
	var errs []error
	if bot.sessionOpen.Swap(false) {
		if err := bot.Session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close discord session: %w", err))
		}
	}
	if bot.cooldownData != nil {
		if err := bot.cooldownData.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if bot.Backends != nil {
		if err := bot.Backends.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
