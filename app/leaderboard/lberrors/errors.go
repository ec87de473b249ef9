// Package lberrors defines the failure taxonomy shared by the leaderboard
// refresh pipeline: the Score Store, the Delivery Channel and the coordinator
// that classifies their failures into retryable and terminal ones.
package lberrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable is returned when the score store cannot be reached.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrMessageNotFound means the referenced board message no longer exists.
	ErrMessageNotFound = errors.New("board message not found")
	// ErrChannelNotFound means the target channel no longer exists.
	ErrChannelNotFound = errors.New("board channel not found")
	// ErrForbidden is returned when the platform rejects the bot's request.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when the platform asks the bot to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransport covers network and 5xx failures talking to the platform.
	ErrTransport = errors.New("transport error")
	// ErrRejected is a 4xx the platform will keep returning for the same request.
	ErrRejected = errors.New("request rejected")
)

// MissingPermissionsError is reported when the bot lacks capabilities it
// needs in the board channel.
type MissingPermissionsError struct {
	ChannelID string
	Missing   []string
}

func (e *MissingPermissionsError) Error() string {
	return fmt.Sprintf("missing permissions in channel %s: %s", e.ChannelID, strings.Join(e.Missing, ", "))
}

// NewMissingPermissionsError creates a MissingPermissionsError.
func NewMissingPermissionsError(channelID string, missing []string) *MissingPermissionsError {
	return &MissingPermissionsError{ChannelID: channelID, Missing: missing}
}

// IsMissingPermissions checks if an error reports missing channel permissions.
func IsMissingPermissions(err error) bool {
	var target *MissingPermissionsError
	return errors.As(err, &target)
}

// AttemptError is the terminal error of a refresh attempt once the retry
// policy gives up or hits a permanent failure.
type AttemptError struct {
	Board    string
	Attempts int
	Cause    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("refresh of board %s failed after %d attempt(s): %v", e.Board, e.Attempts, e.Cause)
}

func (e *AttemptError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether err can only be fixed by external remediation,
// so retrying the attempt is pointless.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrChannelNotFound) ||
		errors.Is(err, ErrRejected) ||
		IsMissingPermissions(err)
}

// IsTransient reports whether a retry of the whole attempt may succeed.
// Unknown errors are treated as transient.
func IsTransient(err error) bool {
	return err != nil && !IsPermanent(err)
}

// Reason returns a short, stable failure reason suitable for metric labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	// A vanished channel is also reported as a missing message, so it is
	// matched first.
	case errors.Is(err, ErrChannelNotFound):
		return "channel_not_found"
	case errors.Is(err, ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case IsMissingPermissions(err):
		return "missing_permissions"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "unknown"
	}
}
