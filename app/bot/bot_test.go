package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	discord "github.com/Black-And-White-Club/discord-leaderboard-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/scores"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/config"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Name: "test", Version: "dev"},
		Leaderboard: config.LeaderboardConfig{
			Interval:      time.Hour,
			RetryAttempts: 1,
			RetryDelay:    10 * time.Millisecond,
			TopN:          5,
			LevelUnit:     100,
			Boards: []config.BoardConfig{
				{Name: "main", ChannelID: "c1", Metrics: []string{"balance", "level"}},
				{Name: "weekly", ChannelID: "c2", Metrics: []string{"balance"}, TopN: 3},
			},
		},
		ScoreStore:   config.ScoreStoreConfig{Driver: "memory"},
		PointerStore: config.PointerStoreConfig{Driver: "memory"},
		Notifier:     config.NotifierConfig{Driver: "none"},
		HTTP:         config.HTTPConfig{Addr: "127.0.0.1:0"},
	}
}

func TestSyncGuildCommands_EmptyGuildList_NoRegistrarCalls(t *testing.T) {
	bot := &DiscordBot{
		Logger:           testLogger(),
		Config:           &config.Config{},
		commandSyncDelay: 0,
		commandRegistrar: func(_ context.Context, _ discord.Session, _ *slog.Logger, _ string) error {
			t.Fatalf("registrar should not be called for empty guild list")
			return nil
		},
	}

	bot.syncGuildCommands(context.Background(), nil)
	bot.syncGuildCommands(context.Background(), []*discordgo.Guild{})
}

func TestSyncGuildCommands_ConfiguredGuildOnly(t *testing.T) {
	var got []string
	bot := &DiscordBot{
		Logger:           testLogger(),
		Config:           &config.Config{Discord: config.DiscordConfig{GuildID: "home"}},
		commandSyncDelay: 0,
		commandRegistrar: func(_ context.Context, _ discord.Session, _ *slog.Logger, guildID string) error {
			got = append(got, guildID)
			return nil
		},
	}

	bot.syncGuildCommands(context.Background(), []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}})
	assert.Equal(t, []string{"home"}, got)
}

func TestSyncGuildCommands_RegistersEveryGuild_ContinuesOnError(t *testing.T) {
	var got []string
	bot := &DiscordBot{
		Logger:           testLogger(),
		Config:           &config.Config{},
		commandSyncDelay: 0,
		commandRegistrar: func(_ context.Context, _ discord.Session, _ *slog.Logger, guildID string) error {
			got = append(got, guildID)
			if guildID == "g1" {
				return errors.New("boom")
			}
			return nil
		},
	}

	bot.syncGuildCommands(context.Background(), []*discordgo.Guild{{ID: "g1"}, nil, {ID: "g2"}})
	if len(got) != 2 || got[0] != "g1" || got[1] != "g2" {
		t.Fatalf("unexpected registrar calls: %v", got)
	}
}

func TestSyncGuildCommands_CanceledContext_StopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bot := &DiscordBot{
		Logger:           testLogger(),
		Config:           &config.Config{},
		commandSyncDelay: 0,
		commandRegistrar: func(_ context.Context, _ discord.Session, _ *slog.Logger, _ string) error {
			t.Fatalf("registrar should not be called when context is canceled")
			return nil
		},
	}

	bot.syncGuildCommands(ctx, []*discordgo.Guild{{ID: "g1"}})
}

func TestCoordinatorConfig(t *testing.T) {
	lb := testConfig().Leaderboard

	cfg, err := coordinatorConfig(lb, lb.Boards[1])
	require.NoError(t, err)
	assert.Equal(t, "weekly", cfg.Name)
	assert.Equal(t, "c2", cfg.ChannelID)
	assert.Equal(t, 3, cfg.TopN)
	assert.Equal(t, []board.Metric{board.MetricBalance}, cfg.Metrics)
	assert.Equal(t, int64(100), cfg.LevelUnit)

	cfg, err = coordinatorConfig(lb, lb.Boards[0])
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopN, "board inherits the shared top-n")

	_, err = coordinatorConfig(lb, config.BoardConfig{Name: "bad", ChannelID: "c", Metrics: []string{"karma"}})
	assert.Error(t, err)
}

func TestOpenBackendsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.PointerStore.Driver = "etcd"
	_, err := OpenBackends(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "etcd")

	cfg = testConfig()
	cfg.Notifier.Driver = "redis"
	_, err = OpenBackends(context.Background(), cfg, testLogger())
	assert.ErrorContains(t, err, "redis addr")
}

func TestOpenBackendsFilePointers(t *testing.T) {
	cfg := testConfig()
	cfg.PointerStore = config.PointerStoreConfig{Driver: "pebble", Path: t.TempDir()}

	b, err := OpenBackends(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &pointer.PebbleStore{}, b.Pointers)
	assert.IsType(t, &scores.MemoryStore{}, b.Scores)
	assert.Nil(t, b.Subscriber)
	assert.NoError(t, b.Close())
}

func TestRunPublishesEveryBoardAndStops(t *testing.T) {
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := OpenBackends(ctx, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, backends.Scores.ApplyDelta(ctx, scores.Delta{EntityID: "1", DisplayLabel: "ace", Balance: 50, Experience: 250}))

	session := discord.NewFakeSession()
	bot, err := NewDiscordBot(ctx, session, cfg, testLogger(), backends, Telemetry{})
	require.NoError(t, err)
	bot.commandRegistrar = func(context.Context, discord.Session, *slog.Logger, string) error { return nil }
	defer bot.Close()

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, c := range bot.Coordinators() {
			s := c.Status()
			if s.LastOutcome != coordinator.OutcomeSuccess {
				return false
			}
		}
		return bot.sessionOpen.Load()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, session.Count("ChannelMessageSendComplex"))
	assert.Equal(t, 2, session.Count("AddHandler"))

	weekly, ok := bot.Coordinator("weekly")
	require.True(t, ok)
	upper, ok := bot.Coordinator("WEEKLY")
	require.True(t, ok)
	assert.Same(t, weekly, upper)
	p, err := backends.Pointers.Load(ctx, pointer.ScopeKey("weekly"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, weekly.Status().Pointer.MessageID, p.MessageID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWhenGatewayCannotOpen(t *testing.T) {
	cfg := testConfig()
	backends, err := OpenBackends(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	session := discord.NewFakeSession()
	session.OpenFunc = func() error { return errors.New("invalid token") }
	bot, err := NewDiscordBot(context.Background(), session, cfg, testLogger(), backends, Telemetry{})
	require.NoError(t, err)
	defer bot.Close()

	err = bot.Run(context.Background())
	assert.ErrorContains(t, err, "invalid token")
}

func TestOpenScoreBackendsSkipsPointers(t *testing.T) {
	cfg := testConfig()
	cfg.PointerStore = config.PointerStoreConfig{Driver: "pebble", Path: t.TempDir()}

	b, err := OpenScoreBackends(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.Pointers)
	assert.NotNil(t, b.Scores)
}
