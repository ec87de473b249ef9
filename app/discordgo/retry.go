package discord

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/cenkalti/backoff/v5"
)

const (
	maxDiscordAPIRetryAttempts = 5
	discordAPIBaseRetryDelay   = 200 * time.Millisecond
	discordAPIMaxRetryDelay    = 3 * time.Second
)

// RetryDiscordAPI retries transient Discord API failures with exponential
// backoff and jitter. The returned error is already classified.
func RetryDiscordAPI(ctx context.Context, logger *slog.Logger, operation string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = discordAPIBaseRetryDelay
	policy.MaxInterval = discordAPIMaxRetryDelay

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := Classify(fn())
		if err == nil {
			return struct{}{}, nil
		}
		if !isRetryableDiscordError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxDiscordAPIRetryAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if logger != nil {
				logger.Warn("Retrying transient Discord API failure",
					attr.String("operation", operation),
					attr.Int("attempt", attempt),
					attr.Duration("retry_in", wait),
					attr.Error(err),
				)
			}
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func isRetryableDiscordError(err error) bool {
	return errors.Is(err, lberrors.ErrRateLimited) || errors.Is(err, lberrors.ErrTransport)
}
