package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/bwmarrin/discordgo"
)

// Classify maps a discordgo failure onto the leaderboard error taxonomy. The
// original error stays in the chain so callers can still inspect it.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	sentinel := classify(err)
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

func classify(err error) error {
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return lberrors.ErrRateLimited
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage:
				return lberrors.ErrMessageNotFound
			case discordgo.ErrCodeUnknownChannel:
				return lberrors.ErrChannelNotFound
			case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
				return lberrors.ErrForbidden
			}
		}
		if restErr.Response != nil {
			status := restErr.Response.StatusCode
			switch {
			case status == http.StatusNotFound:
				return lberrors.ErrMessageNotFound
			case status == http.StatusForbidden || status == http.StatusUnauthorized:
				return lberrors.ErrForbidden
			case status == http.StatusTooManyRequests:
				return lberrors.ErrRateLimited
			case status >= http.StatusInternalServerError:
				return lberrors.ErrTransport
			case status >= http.StatusBadRequest:
				return lberrors.ErrRejected
			}
		}
		return lberrors.ErrTransport
	}

	for _, known := range []error{
		lberrors.ErrMessageNotFound,
		lberrors.ErrChannelNotFound,
		lberrors.ErrForbidden,
		lberrors.ErrRateLimited,
		lberrors.ErrRejected,
		lberrors.ErrTransport,
	} {
		if errors.Is(err, known) {
			return known
		}
	}

	// Network failures, deadlines and anything unrecognised are retried.
	return lberrors.ErrTransport
}
