// Package delivery publishes rendered boards to Discord channels.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	discord "github.com/Black-And-White-Club/discord-leaderboard-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// requiredPermissions are the channel capabilities a board needs.
var requiredPermissions = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionViewChannel, "View Channel"},
	{discordgo.PermissionSendMessages, "Send Messages"},
	{discordgo.PermissionEmbedLinks, "Embed Links"},
}

// DiscordChannel sends, edits and deletes board messages through a Discord
// session. Every error it returns is classified into the lberrors taxonomy.
type DiscordChannel struct {
	session discord.Session
	logger  *slog.Logger
	tracer  trace.Tracer

	mu    sync.Mutex
	botID string
}

// Option configures a DiscordChannel.
type Option func(*DiscordChannel)

// WithTracer sets the tracer used for per-call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *DiscordChannel) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// NewDiscordChannel creates a DiscordChannel.
func NewDiscordChannel(session discord.Session, logger *slog.Logger, opts ...Option) *DiscordChannel {
	if logger == nil {
		logger = slog.Default()
	}
	d := &DiscordChannel{
		session: session,
		logger:  logger,
		tracer:  noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send posts a new board message in channelID.
func (d *DiscordChannel) Send(ctx context.Context, channelID string, payload board.Payload) (board.MessageRef, error) {
	var ref board.MessageRef
	err := d.wrap(ctx, "send_board_message", channelID, func(ctx context.Context) error {
		msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content: payload.Content,
			Embeds:  payload.Embeds,
		}, discordgo.WithContext(ctx))
		if err != nil {
			err = discord.Classify(err)
			// A 404 on a send can only mean the channel is gone.
			if errors.Is(err, lberrors.ErrMessageNotFound) {
				return fmt.Errorf("%w: %w", lberrors.ErrChannelNotFound, err)
			}
			return err
		}
		if msg == nil || msg.ID == "" {
			return fmt.Errorf("%w: empty message returned by send", lberrors.ErrTransport)
		}
		ref = board.MessageRef{ChannelID: channelID, MessageID: msg.ID}
		return nil
	})
	return ref, err
}

// Edit replaces the content of an existing board message.
func (d *DiscordChannel) Edit(ctx context.Context, ref board.MessageRef, payload board.Payload) error {
	return d.wrap(ctx, "edit_board_message", ref.ChannelID, func(ctx context.Context) error {
		content := payload.Content
		embeds := payload.Embeds
		if embeds == nil {
			embeds = []*discordgo.MessageEmbed{}
		}
		_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
			ID:      ref.MessageID,
			Channel: ref.ChannelID,
			Content: &content,
			Embeds:  &embeds,
		}, discordgo.WithContext(ctx))
		return discord.Classify(err)
	})
}

// Delete removes a stale board message. It is best effort: a message that is
// already gone is fine and other failures are only logged.
func (d *DiscordChannel) Delete(ctx context.Context, ref board.MessageRef) {
	err := d.wrap(ctx, "delete_board_message", ref.ChannelID, func(ctx context.Context) error {
		return discord.RetryDiscordAPI(ctx, d.logger, "delete_board_message", func() error {
			return d.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
		})
	})
	if err != nil && !errors.Is(err, lberrors.ErrMessageNotFound) {
		d.logger.WarnContext(ctx, "Failed to delete previous board message",
			attr.ChannelID(ref.ChannelID),
			attr.MessageID(ref.MessageID),
			attr.Error(err),
		)
	}
}

// CheckPermissions returns the names of the permissions the bot is missing in
// channelID. An empty result means the board can be published there.
func (d *DiscordChannel) CheckPermissions(ctx context.Context, channelID string) ([]string, error) {
	var missing []string
	err := d.wrap(ctx, "check_board_permissions", channelID, func(ctx context.Context) error {
		botID, err := d.resolveBotID()
		if err != nil {
			return err
		}
		perms, err := d.session.UserChannelPermissions(botID, channelID, discordgo.WithContext(ctx))
		if err != nil {
			err = discord.Classify(err)
			if errors.Is(err, lberrors.ErrMessageNotFound) {
				return fmt.Errorf("%w: %w", lberrors.ErrChannelNotFound, err)
			}
			return err
		}
		if perms&discordgo.PermissionAdministrator != 0 {
			return nil
		}
		for _, p := range requiredPermissions {
			if perms&p.bit == 0 {
				missing = append(missing, p.name)
			}
		}
		return nil
	})
	return missing, err
}

func (d *DiscordChannel) resolveBotID() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.botID != "" {
		return d.botID, nil
	}
	user, err := d.session.GetBotUser()
	if err != nil {
		return "", discord.Classify(err)
	}
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("%w: bot user has no id", lberrors.ErrTransport)
	}
	d.botID = user.ID
	return d.botID, nil
}

func (d *DiscordChannel) wrap(ctx context.Context, operationName, channelID string, fn func(ctx context.Context) error) (err error) {
	ctx, span := d.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("channel_id", channelID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in %s: %v", lberrors.ErrTransport, operationName, r)
			d.logger.ErrorContext(ctx, "Recovered from panic", attr.Error(err), attr.String("operation", operationName))
		}
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("reason", lberrors.Reason(err)))
		}
		d.logger.DebugContext(ctx, "Discord call finished",
			attr.String("operation", operationName),
			attr.ChannelID(channelID),
			attr.Duration("duration", time.Since(start)),
			attr.Error(err),
		)
	}()

	return fn(ctx)
}
