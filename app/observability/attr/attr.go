// Package attr holds the slog attribute helpers used across the bot so that
// call sites stay short and key names stay consistent.
package attr

import (
	"log/slog"
	"time"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

func Time(key string, value time.Time) slog.Attr { return slog.Time(key, value) }

func Any(key string, value any) slog.Attr { return slog.Any(key, value) }

// Error returns an "error" attribute. A nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Board tags a record with the leaderboard it belongs to.
func Board(name string) slog.Attr { return slog.String("board", name) }

// ChannelID tags a record with a Discord channel.
func ChannelID(id string) slog.Attr { return slog.String("channel_id", id) }

// MessageID tags a record with a Discord message.
func MessageID(id string) slog.Attr { return slog.String("message_id", id) }
