package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/lberrors"
	"github.com/bwmarrin/discordgo"
)

func restError(status, code int) error {
	var msg *discordgo.APIErrorMessage
	if code != 0 {
		msg = &discordgo.APIErrorMessage{Code: code, Message: "test"}
	}
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status, Status: http.StatusText(status)},
		Message:  msg,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown message code", err: restError(404, discordgo.ErrCodeUnknownMessage), want: lberrors.ErrMessageNotFound},
		{name: "unknown channel code", err: restError(404, discordgo.ErrCodeUnknownChannel), want: lberrors.ErrChannelNotFound},
		{name: "missing access code", err: restError(403, discordgo.ErrCodeMissingAccess), want: lberrors.ErrForbidden},
		{name: "missing permissions code", err: restError(403, discordgo.ErrCodeMissingPermissions), want: lberrors.ErrForbidden},
		{name: "bare 404", err: restError(404, 0), want: lberrors.ErrMessageNotFound},
		{name: "bare 403", err: restError(403, 0), want: lberrors.ErrForbidden},
		{name: "429 status", err: restError(429, 0), want: lberrors.ErrRateLimited},
		{name: "server error", err: restError(502, 0), want: lberrors.ErrTransport},
		{name: "bad request", err: restError(400, 50035), want: lberrors.ErrRejected},
		{
			name: "rate limit error",
			err: &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{
				TooManyRequests: &discordgo.TooManyRequests{RetryAfter: time.Second},
				URL:             "https://discord.test/channels/c1/messages",
			}},
			want: lberrors.ErrRateLimited,
		},
		{name: "deadline", err: fmt.Errorf("send: %w", context.DeadlineExceeded), want: lberrors.ErrTransport},
		{name: "unknown", err: errors.New("boom"), want: lberrors.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Fatalf("Classify() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("Classify() dropped the original error")
			}
		})
	}
}

func TestClassify_NilAndAlreadyClassified(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	already := fmt.Errorf("edit: %w", lberrors.ErrMessageNotFound)
	if got := Classify(already); got != already {
		t.Fatalf("expected already classified error to pass through, got %v", got)
	}
}
