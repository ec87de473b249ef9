// Package command implements the /leaderboard-refresh slash command, the
// operator-facing manual trigger of a board refresh.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	discord "github.com/Black-And-White-Club/discord-leaderboard-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/interactions"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/pointer"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	cache "github.com/Black-And-White-Club/discord-leaderboard-bot/bigcache"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Refresher is the manual trigger of one board.
type Refresher interface {
	Name() string
	RefreshNow(ctx context.Context) (pointer.Pointer, error)
}

// Handler serves /leaderboard-refresh.
type Handler struct {
	session  discord.Session
	boards   map[string]Refresher
	fallback string
	cooldown *cache.Cooldown
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewHandler creates a Handler. The first refresher is the board used when
// the command names none. A nil cooldown disables rate limiting.
func NewHandler(session discord.Session, refreshers []Refresher, cooldown *cache.Cooldown, logger *slog.Logger, tracer trace.Tracer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	h := &Handler{
		session:  session,
		boards:   make(map[string]Refresher, len(refreshers)),
		cooldown: cooldown,
		logger:   logger.With(attr.String("command", discord.RefreshCommandName)),
		tracer:   tracer,
	}
	for _, r := range refreshers {
		if h.fallback == "" {
			h.fallback = r.Name()
		}
		h.boards[strings.ToLower(r.Name())] = r
	}
	return h
}

// Register binds the handler to its command name.
func (h *Handler) Register(registry *interactions.Registry) {
	registry.RegisterHandler(discord.RefreshCommandName, h.HandleRefresh)
}

// HandleRefresh runs one manual refresh and reports the outcome to the
// invoking user in an ephemeral reply.
func (h *Handler) HandleRefresh(ctx context.Context, i *discordgo.InteractionCreate) {
	ctx, span := h.tracer.Start(ctx, "leaderboard.command.refresh",
		trace.WithAttributes(attribute.String("operation", "handle_refresh_command")))
	defer span.End()

	userID := invokerID(i)
	name := h.boardOption(i)
	logger := h.logger.With(
		attr.String("interaction_id", i.ID),
		attr.String("user_id", userID),
		attr.Board(name),
	)
	logger.InfoContext(ctx, "Handling refresh command")

	target, ok := h.boards[strings.ToLower(name)]
	if !ok {
		logger.WarnContext(ctx, "Refresh requested for unknown board")
		h.reply(ctx, i, fmt.Sprintf("Unknown board %q. Available: %s", name, strings.Join(h.names(), ", ")))
		return
	}

	name = target.Name()

	if allowed, wait := h.cooldown.Allow(userID); !allowed {
		logger.InfoContext(ctx, "Refresh command on cooldown", attr.Duration("remaining", wait))
		h.reply(ctx, i, fmt.Sprintf("Please wait %s before refreshing again.", wait.Round(time.Second)))
		return
	}

	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to defer interaction", attr.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "defer failed")
		return
	}

	p, err := target.RefreshNow(ctx)
	content := successMessage(name, p)
	if err != nil {
		logger.WarnContext(ctx, "Manual refresh failed", attr.Error(err), attr.String("reason", lberrors.Reason(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, lberrors.Reason(err))
		// Interrupted refreshes don't count against the cooldown.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.cooldown.Reset(userID)
		}
		content = failureMessage(name, err)
	}

	if _, err := h.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		logger.ErrorContext(ctx, "Failed to edit interaction response", attr.Error(err))
	}
}

func (h *Handler) reply(ctx context.Context, i *discordgo.InteractionCreate, content string) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to respond to interaction", attr.Error(err))
	}
}

func (h *Handler) boardOption(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == discord.BoardOptionName {
			if v := strings.TrimSpace(opt.StringValue()); v != "" {
				return v
			}
		}
	}
	return h.fallback
}

func (h *Handler) names() []string {
	names := make([]string, 0, len(h.boards))
	for _, r := range h.boards {
		names = append(names, r.Name())
	}
	slices.Sort(names)
	return names
}

func invokerID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

func successMessage(name string, p pointer.Pointer) string {
	return fmt.Sprintf("Board **%s** refreshed in <#%s>.", name, p.ChannelID)
}

func failureMessage(name string, err error) string {
	var missing *lberrors.MissingPermissionsError
	switch {
	case errors.As(err, &missing):
		return fmt.Sprintf("Board **%s** could not be refreshed: the bot is missing %s in <#%s>.",
			name, strings.Join(missing.Missing, ", "), missing.ChannelID)
	case errors.Is(err, lberrors.ErrForbidden):
		return fmt.Sprintf("Board **%s** could not be refreshed: the bot is not allowed to post in its channel.", name)
	case errors.Is(err, lberrors.ErrChannelNotFound):
		return fmt.Sprintf("Board **%s** could not be refreshed: its channel no longer exists.", name)
	default:
		return fmt.Sprintf("Board **%s** could not be refreshed (%s). It will be retried on the next cycle.", name, lberrors.Reason(err))
	}
}
