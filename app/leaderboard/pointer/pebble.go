package pointer

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "leaderboard/pointer/"

// PebbleStore keeps pointers in an embedded Pebble database. Every write is
// synced to the WAL before returning.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dataDir string) (*PebbleStore, error) {
	if dataDir == "" {
		return nil, errors.New("pebble pointer store: data dir is required")
	}
	db, err := pebble.Open(dataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dataDir, err)
	}
	return &PebbleStore{db: db}, nil
}

func pebbleKey(scope string) []byte {
	return []byte(pebbleKeyPrefix + scope)
}

func (s *PebbleStore) Load(_ context.Context, scope string) (*Pointer, error) {
	val, closer, err := s.db.Get(pebbleKey(scope))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pointer for scope '%s': %w", scope, err)
	}
	defer closer.Close()

	buf := append([]byte(nil), val...)
	return decode(buf)
}

func (s *PebbleStore) Save(_ context.Context, scope string, p Pointer) error {
	data, err := encode(p)
	if err != nil {
		return err
	}
	if err := s.db.Set(pebbleKey(scope), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write pointer for scope '%s': %w", scope, err)
	}
	return nil
}

func (s *PebbleStore) Clear(_ context.Context, scope string) error {
	if err := s.db.Delete(pebbleKey(scope), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete pointer for scope '%s': %w", scope, err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
