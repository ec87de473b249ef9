package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
)

func TestRetryDiscordAPI_RetriesTransientFailures(t *testing.T) {
	calls := 0
	err := RetryDiscordAPI(context.Background(), testLogger(), "test", func() error {
		calls++
		if calls < 3 {
			return restError(502, 0)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryDiscordAPI_StopsOnPermanentFailure(t *testing.T) {
	calls := 0
	err := RetryDiscordAPI(context.Background(), testLogger(), "test", func() error {
		calls++
		return restError(403, 0)
	})
	if !errors.Is(err, lberrors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryDiscordAPI_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := RetryDiscordAPI(ctx, testLogger(), "test", func() error {
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("retry loop ignored context cancellation")
	}
}
