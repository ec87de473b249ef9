package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/bot"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/health"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/coordinator"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one synchronous refresh and exit",
		Long: `Refresh publishes the named board (or every board) once, then exits.
The exit code is non-zero when any board fails.

Board messages must have a single writer. When a serving bot answers on
--server (the configured http.addr by default), the refresh is delegated to
its POST /boards/{board}/refresh endpoint. Otherwise the command publishes
through the Discord REST API itself, without connecting to the gateway. A
standalone run needs the pointer store to itself: the pebble driver refuses
to open while a bot holds its lock.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := cmd.Flags().GetString("board")
			if err != nil {
				return err
			}
			server, err := cmd.Flags().GetString("server")
			if err != nil {
				return err
			}
			return runRefresh(cmd, name, server)
		},
	}
	cmd.Flags().String("board", "", "Board to refresh (all boards when empty)")
	cmd.Flags().String("server", "", "Base URL of a serving bot (defaults to the configured http.addr)")
	return cmd
}

func runRefresh(cmd *cobra.Command, name, server string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

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

	names := []string{name}
	if name == "" {
		names = names[:0]
		for _, b := range cfg.Leaderboard.Boards {
			names = append(names, b.Name)
		}
	} else if _, ok := cfg.Board(name); !ok {
		return fmt.Errorf("unknown board %q", name)
	}

	if server == "" {
		server = serverURL(cfg.HTTP.Addr)
	}
	client := &http.Client{Timeout: refreshTimeout}
	if botServing(ctx, client, server) {
		logger.Info("Delegating refresh to the serving bot", attr.String("server", server))
		return delegateRefresh(ctx, client, server, names, cmd.OutOrStdout())
	}

	backends, err := bot.OpenBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	session, err := bot.NewSession(cfg.Discord.Token, logger)
	if err != nil {
		_ = backends.Close()
		return err
	}
	b, err := bot.NewDiscordBot(ctx, session, cfg, logger, backends, bot.Telemetry{}, coordinator.WithStartupRefresh(false))
	if err != nil {
		_ = backends.Close()
		return err
	}
	defer b.Close()

	targets := b.Coordinators()
	if name != "" {
		c, ok := b.Coordinator(name)
		if !ok {
			return fmt.Errorf("unknown board %q", name)
		}
		targets = []*coordinator.Coordinator{c}
	}

	if err := b.StartCoordinators(ctx); err != nil {
		return err
	}
	defer b.StopCoordinators()

	var errs []error
	for _, c := range targets {
		p, err := c.RefreshNow(ctx)
		if err != nil {
			logger.Error("Refresh failed", attr.Board(c.Name()), attr.String("reason", lberrors.Reason(err)), attr.Error(err))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: failed (%s)\n", c.Name(), lberrors.Reason(err))
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: published message %s in channel %s\n", c.Name(), p.MessageID, p.ChannelID)
	}
	return errors.Join(errs...)
}

// refreshTimeout bounds one delegated refresh, which may include retries.
const refreshTimeout = 5 * time.Minute

// serverURL turns a listen address into a URL reachable from this host.
func serverURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// botServing reports whether a bot answers /health at server.
func botServing(ctx context.Context, client *http.Client, server string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// delegateRefresh asks the serving bot to refresh each board in turn.
func delegateRefresh(ctx context.Context, client *http.Client, server string, names []string, out io.Writer) error {
	var errs []error
	for _, name := range names {
		endpoint := server + "/boards/" + url.PathEscape(name) + "/refresh"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(out, "%s: failed (%v)\n", name, err)
			errs = append(errs, fmt.Errorf("board %s: %w", name, err))
			continue
		}

		var body health.RefreshResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && decodeErr == nil && body.Pointer != nil:
			fmt.Fprintf(out, "%s: published message %s in channel %s\n", name, body.Pointer.MessageID, body.Pointer.ChannelID)
		case decodeErr != nil:
			fmt.Fprintf(out, "%s: failed (HTTP %d)\n", name, resp.StatusCode)
			errs = append(errs, fmt.Errorf("board %s: HTTP %d: %w", name, resp.StatusCode, decodeErr))
		default:
			reason := body.Reason
			if reason == "" {
				reason = http.StatusText(resp.StatusCode)
			}
			fmt.Fprintf(out, "%s: failed (%s)\n", name, reason)
			errs = append(errs, fmt.Errorf("board %s: %s", name, body.Error))
		}
	}
	return errors.Join(errs...)
}
