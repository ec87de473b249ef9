// Package notify carries "metric changed" announcements from whatever mutates
// scores to the refresh coordinators. Events carry no payload guarantees; a
// receiver always re-reads the score store.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/google/uuid"
)

// DefaultTopic is the topic (NATS subject / Redis channel) events flow on.
const DefaultTopic = "leaderboard.metric.changed"

const eventBuffer = 64

// Event announces that some metric of some entity changed.
type Event struct {
	ID       string    `json:"id"`
	Metric   string    `json:"metric,omitempty"`
	EntityID string    `json:"entity_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(metric, entityID string) Event {
	return Event{
		ID:       uuid.NewString(),
		Metric:   metric,
		EntityID: entityID,
		At:       time.Now().UTC(),
	}
}

// Subscriber yields change events until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Publisher announces change events.
type Publisher interface {
	Announce(ctx context.Context, ev Event) error
	Close() error
}

// decodeEvent never fails: a payload that cannot be parsed still means
// "something changed".
func decodeEvent(id string, payload []byte, logger *slog.Logger) Event {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		logger.Warn("Undecodable change notification, treating as generic change",
			attr.String("message_id", id),
			attr.Error(err),
		)
		ev = Event{}
	}
	if ev.ID == "" {
		ev.ID = id
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	return ev
}

// Nop is a Publisher that drops every event. It is used when no notifier
// transport is configured.
type Nop struct{}

func (Nop) Announce(context.Context, Event) error { return nil }
func (Nop) Close() error                          { return nil }
