package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/bot"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: gateway, refresh coordinators and HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, stopLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer stopLogger()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracer, err := observability.NewTracerProvider(ctx, observability.TracingOptions{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Endpoint:       cfg.Tempo.Endpoint,
		Insecure:       cfg.Tempo.Insecure,
		SampleRate:     cfg.Tempo.SampleRate,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize tracing", attr.Error(err))
		return err
	}
	m, err := observability.NewMetrics(ctx, cfg.Metrics.Enabled, cfg.Service.Name, cfg.Service.Version)
	if err != nil {
		logger.Error("Failed to initialize metrics", attr.Error(err))
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("Tracer shutdown failed", attr.Error(err))
		}
		if err := m.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Meter shutdown failed", attr.Error(err))
		}
	}()

	backends, err := bot.OpenBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open backends", attr.Error(err))
		return err
	}

	session, err := bot.NewSession(cfg.Discord.Token, logger)
	if err != nil {
		_ = backends.Close()
		return err
	}

	b, err := bot.NewDiscordBot(ctx, session, cfg, logger, backends, bot.Telemetry{
		Tracer:         tp,
		Meter:          m.Provider,
		MetricsHandler: m.Handler,
	})
	if err != nil {
		_ = backends.Close()
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Shutdown finished with errors", attr.Error(err))
		}
	}()

	if err := b.Run(ctx); err != nil {
		logger.Error("Bot stopped with error", attr.Error(err))
		return err
	}
	logger.Info("Bot stopped")
	return nil
}
