// Package app holds the leaderboard-bot CLI commands.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X .../app.Version=...".
var Version = "dev"

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "leaderboard-bot",
		Short:         "Discord leaderboard bot",
		Long:          "Keeps one leaderboard message per board up to date in Discord.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	for _, name := range []string{"config", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}
	viper.SetEnvPrefix("LEADERBOARD")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newAdjustCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{
				"version":  Version,
				"go":       runtime.Version(),
				"platform": runtime.GOOS + "/" + runtime.GOARCH,
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			if format == "json" {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leaderboard-bot %s (%s, %s)\n", info["version"], info["go"], info["platform"])
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

// loadConfig reads the file named by --config and applies the --log-level
// override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level := viper.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = Version
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	logger, stop, err := observability.NewLogger(observability.LoggerOptions{
		Service:      cfg.Service.Name,
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		LokiURL:      cfg.Loki.URL,
		LokiTenantID: cfg.Loki.TenantID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)
	return logger, stop, nil
}
