package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats.go"
)

// NewNATSPubSub builds a watermill publisher and subscriber over core NATS.
// Every bot instance receives every event (no queue group), since each one
// owns its own boards.
func NewNATSPubSub(url string, logger *slog.Logger) (*wmnats.Publisher, *wmnats.Subscriber, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}
	natsOptions := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	publisher, err := wmnats.NewPublisher(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions,
		Marshaler:   marshaler,
		JetStream:   wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(wmnats.SubscriberConfig{
		URL:              url,
		NatsOptions:      natsOptions,
		Unmarshaler:      marshaler,
		SubscribersCount: 1,
		CloseTimeout:     30 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		JetStream:        wmnats.JetStreamConfig{Disabled: true},
	}, wmLogger)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("failed to create NATS subscriber: %w", err)
	}

	return publisher, subscriber, nil
}
