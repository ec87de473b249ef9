package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const metadataMetric = "metric"

// WatermillSubscriber adapts any watermill subscriber (NATS in production,
// gochannel in tests) to the Subscriber interface.
type WatermillSubscriber struct {
	sub    message.Subscriber
	topic  string
	logger *slog.Logger
}

func NewWatermillSubscriber(sub message.Subscriber, topic string, logger *slog.Logger) *WatermillSubscriber {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillSubscriber{sub: sub, topic: topic, logger: logger}
}

func (w *WatermillSubscriber) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := w.sub.Subscribe(ctx, w.topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", w.topic, err)
	}
	w.logger.Info("Subscribed to change notifications", attr.String("topic", w.topic))

	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		for msg := range messages {
			ev := decodeEvent(msg.UUID, msg.Payload, w.logger)
			if ev.Metric == "" {
				ev.Metric = msg.Metadata.Get(metadataMetric)
			}
			msg.Ack()

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (w *WatermillSubscriber) Close() error {
	return w.sub.Close()
}

// WatermillPublisher announces events on a watermill publisher.
type WatermillPublisher struct {
	pub   message.Publisher
	topic string
}

func NewWatermillPublisher(pub message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{pub: pub, topic: topic}
}

func (w *WatermillPublisher) Announce(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = watermill.NewUUID()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)
	if ev.Metric != "" {
		msg.Metadata.Set(metadataMetric, ev.Metric)
	}
	if err := w.pub.Publish(w.topic, msg); err != nil {
		return fmt.Errorf("failed to publish change event to %s: %w", w.topic, err)
	}
	return nil
}

func (w *WatermillPublisher) Close() error {
	return w.pub.Close()
}
