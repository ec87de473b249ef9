// Package pointer persists where the current board message lives so a
// restarted bot edits its existing message instead of posting a new one.
package pointer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/leaderboard/board"
)

// Pointer is the durable identity of a published board.
type Pointer struct {
	ChannelID       string    `json:"channel_id"`
	MessageID       string    `json:"message_id"`
	LastPublishedAt time.Time `json:"last_published_at"`
}

// Ref returns the message reference the pointer points at.
func (p Pointer) Ref() board.MessageRef {
	return board.MessageRef{ChannelID: p.ChannelID, MessageID: p.MessageID}
}

// Store is the durable pointer store, keyed by board scope.
type Store interface {
	// Load returns the stored pointer, or nil when nothing was published yet
	// or the pointer was cleared.
	Load(ctx context.Context, scope string) (*Pointer, error)
	// Save upserts the pointer, overwriting any previous value.
	Save(ctx context.Context, scope string, p Pointer) error
	// Clear removes the pointer. Clearing a missing pointer is not an error.
	Clear(ctx context.Context, scope string) error
	Close() error
}

// ScopeKey builds the pointer key for a named board. The result only uses
// characters accepted by every backend (JetStream KV keys are the strictest).
func ScopeKey(boardName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(boardName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return "board." + b.String()
}

func encode(p Pointer) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pointer: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Pointer, error) {
	var p Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pointer: %w", err)
	}
	if p.ChannelID == "" || p.MessageID == "" {
		return nil, nil
	}
	return &p, nil
}
