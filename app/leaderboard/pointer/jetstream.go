package pointer

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket holding board pointers.
const DefaultBucket = "leaderboard-pointers"

// JetStreamStore keeps pointers in a NATS JetStream key/value bucket.
type JetStreamStore struct {
	kv jetstream.KeyValue
}

// NewJetStreamStore binds to bucket, creating it when it does not exist.
func NewJetStreamStore(ctx context.Context, js jetstream.JetStream, bucket string) (*JetStreamStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "current leaderboard message per board",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind key/value bucket %s: %w", bucket, err)
	}
	return &JetStreamStore{kv: kv}, nil
}

func (s *JetStreamStore) Load(ctx context.Context, scope string) (*Pointer, error) {
	entry, err := s.kv.Get(ctx, scope)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pointer for scope '%s': %w", scope, err)
	}
	return decode(entry.Value())
}

func (s *JetStreamStore) Save(ctx context.Context, scope string, p Pointer) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, scope, data); err != nil {
		return fmt.Errorf("failed to write pointer for scope '%s': %w", scope, err)
	}
	return nil
}

func (s *JetStreamStore) Clear(ctx context.Context, scope string) error {
	if err := s.kv.Delete(ctx, scope); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete pointer for scope '%s': %w", scope, err)
	}
	return nil
}

// Close is a no-op; the NATS connection is owned by the caller.
func (s *JetStreamStore) Close() error { return nil }
