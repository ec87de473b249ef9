// Package cache wraps bigcache and builds the slash command cooldown on top
// of it.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

type CacheInterface interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

type Cache struct {
	bigCache *bigcache.BigCache
}

// NewCache creates a cache whose entries are evicted after lifeWindow.
func NewCache(ctx context.Context, lifeWindow time.Duration) (*Cache, error) {
	config := bigcache.DefaultConfig(lifeWindow)
	config.CleanWindow = lifeWindow
	config.Shards = 64
	config.Verbose = false
	bigCache, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigcache: %w", err)
	}
	return &Cache{bigCache: bigCache}, nil
}

func (c *Cache) Set(key string, value []byte) error {
	return c.bigCache.Set(key, value)
}

func (c *Cache) Get(key string) ([]byte, error) {
	return c.bigCache.Get(key)
}

func (c *Cache) Delete(key string) error {
	return c.bigCache.Delete(key)
}

func (c *Cache) Close() error {
	return c.bigCache.Close()
}

// Cooldown limits how often a key may perform an action. The last use is
// stored alongside the key; bigcache eviction only reclaims memory, the
// window itself is enforced from the stored timestamp.
type Cooldown struct {
	mu     sync.Mutex
	cache  CacheInterface
	window time.Duration
	now    func() time.Time
}

// NewCooldown builds a Cooldown over the given cache.
func NewCooldown(cache CacheInterface, window time.Duration) *Cooldown {
	return &Cooldown{cache: cache, window: window, now: time.Now}
}

// Allow records a use of key and reports true when the previous use is older
// than the window. Otherwise it returns false and the time left to wait.
// A zero window always allows.
func (c *Cooldown) Allow(key string) (bool, time.Duration) {
	if c == nil || c.window <= 0 {
		return true, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if raw, err := c.cache.Get(key); err == nil && len(raw) == 8 {
		last := time.Unix(0, int64(binary.BigEndian.Uint64(raw)))
		if elapsed := now.Sub(last); elapsed < c.window {
			return false, c.window - elapsed
		}
	} else if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		// Cache failures fail open.
		return true, 0
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(now.UnixNano()))
	_ = c.cache.Set(key, buf)
	return true, 0
}

// Reset forgets the last use of key.
func (c *Cooldown) Reset(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.cache.Delete(key)
}
