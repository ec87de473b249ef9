package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/app/observability/attr"
	"github.com/redis/go-redis/v9"
)

// RedisSubscriber receives change events over Redis pub/sub.
type RedisSubscriber struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

func NewRedisSubscriber(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisSubscriber {
	if channel == "" {
		channel = DefaultTopic
	}
	return &RedisSubscriber{client: client, channel: channel, logger: logger}
}

func (r *RedisSubscriber) Subscribe(ctx context.Context) (<-chan Event, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to redis channel %s: %w", r.channel, err)
	}
	r.logger.Info("Subscribed to change notifications", attr.String("channel", r.channel))

	messages := pubsub.Channel()
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				ev := decodeEvent("", []byte(msg.Payload), r.logger)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the Redis client is shared and owned by the caller.
func (r *RedisSubscriber) Close() error { return nil }

// RedisPublisher announces change events over Redis pub/sub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultTopic
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (r *RedisPublisher) Announce(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event to %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisPublisher) Close() error { return nil }
