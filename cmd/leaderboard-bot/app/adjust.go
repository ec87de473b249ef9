package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/bot"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/scores"
	"github.com/spf13/cobra"
)

func newAdjustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Apply a balance/XP delta to one member and announce the change",
		RunE:  runAdjust,
	}
	cmd.Flags().String("entity", "", "Member id (required)")
	cmd.Flags().String("label", "", "Display label stored with the member")
	cmd.Flags().Int64("balance", 0, "Balance delta")
	cmd.Flags().Int64("xp", 0, "Experience delta")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func runAdjust(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	delta, err := deltaFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateScoreStore(); err != nil {
		return err
	}
	logger, stopLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer stopLogger()

	backends, err := bot.OpenScoreBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	if err := backends.Scores.ApplyDelta(ctx, delta); err != nil {
		return fmt.Errorf("failed to apply delta: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied balance %+d, xp %+d to %s\n", delta.Balance, delta.Experience, delta.EntityID)
	return nil
}

func deltaFromFlags(cmd *cobra.Command) (scores.Delta, error) {
	flags := cmd.Flags()
	entity, err := flags.GetString("entity")
	if err != nil {
		return scores.Delta{}, err
	}
	label, err := flags.GetString("label")
	if err != nil {
		return scores.Delta{}, err
	}
	balance, err := flags.GetInt64("balance")
	if err != nil {
		return scores.Delta{}, err
	}
	xp, err := flags.GetInt64("xp")
	if err != nil {
		return scores.Delta{}, err
	}
	if entity == "" {
		return scores.Delta{}, errors.New("--entity is required")
	}
	if balance == 0 && xp == 0 {
		return scores.Delta{}, errors.New("nothing to apply: set --balance and/or --xp")
	}
	return scores.Delta{EntityID: entity, DisplayLabel: label, Balance: balance, Experience: xp}, nil
}
