package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/bwmarrin/discordgo"
)

const (
	// RefreshCommandName is the slash command that forces a board refresh.
	RefreshCommandName = "leaderboard-refresh"
	// BoardOptionName selects the board; the default board is used when omitted.
	BoardOptionName = "board"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageServer)
	return []*discordgo.ApplicationCommand{
		{
			Name:                     RefreshCommandName,
			Description:              "Refresh the leaderboard message now",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        BoardOptionName,
					Description: "Board to refresh (defaults to the first configured board)",
					Required:    false,
				},
			},
		},
	}
}

// RegisterCommands registers the bot's slash commands with Discord. Commands
// that already exist in the guild are left alone.
func RegisterCommands(ctx context.Context, s Session, logger *slog.Logger, guildID string) error {
	appID, err := s.GetBotUser()
	if err != nil {
		return fmt.Errorf("failed to retrieve bot user: %w", err)
	}

	existing := map[string]bool{}
	registered, err := s.ApplicationCommands(appID.ID, guildID)
	if err != nil {
		logger.Warn("Failed to list existing commands, registering all", attr.Error(err))
	}
	for _, cmd := range registered {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existing[cmd.Name] = true
	}

	for _, cmd := range commandDefinitions() {
		if existing[cmd.Name] {
			logger.Debug("command already registered", attr.String("command", cmd.Name))
			continue
		}
		err := RetryDiscordAPI(ctx, logger, "register_command", func() error {
			_, err := s.ApplicationCommandCreate(appID.ID, guildID, cmd)
			return err
		})
		if err != nil {
			logger.Error("Failed to create command", attr.String("command", cmd.Name), attr.Error(err))
			return fmt.Errorf("failed to create '/%s' command: %w", cmd.Name, err)
		}
		logger.Info("registered command", attr.String("command", "/"+cmd.Name))
	}
	return nil
}
