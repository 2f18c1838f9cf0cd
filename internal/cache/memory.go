package cache

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type memEntry struct {
	data     []byte
	deadline time.Time
}

func (e memEntry) live(now time.Time) bool {
	return now.Before(e.deadline)
}

// MemoryCache is the default Cache backend. Snapshots it holds are
// cheap to recompute, so losing them on restart costs nothing. Expired
// entries are dropped lazily on read and swept periodically so the map
// does not grow with dead keys.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	done    chan struct{}
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns a cache with a background expiry sweeper.
// Call Close to stop the sweeper.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memEntry),
		done:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !e.live(time.Now()) {
		return nil, ErrCacheMiss
	}

	// Copy out so callers cannot mutate the stored bytes.
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = memEntry{data: stored, deadline: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return ok && e.live(time.Now()), nil
}

func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]memEntry)
	c.mu.Unlock()
	return nil
}

// Close stops the expiry sweeper.
func (c *MemoryCache) Close() error {
	close(c.done)
	return nil
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.entries {
				if !e.live(now) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
