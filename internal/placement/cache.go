package placement

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
)

// DefaultCacheTTL is how long a placement decision is reused.
const DefaultCacheTTL = time.Minute

// Cache memoizes room -> shard decisions.
//
// Get returns (nil, nil) on a miss, including an expired entry. Put always
// overwrites. Clear drops every entry.
type Cache interface {
	Get(ctx context.Context, roomID string) (*domain.CacheEntry, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
	Clear(ctx context.Context) error
}

// MemoryCache is the in-process Cache. Expiry is evaluated on read; expired
// entries stay in the map until superseded by Put or dropped by Clear.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

// NewMemoryCache creates an unbounded cache. now defaults to time.Now.
func NewMemoryCache(ttl time.Duration, now func() time.Time) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]domain.CacheEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, roomID string) (*domain.CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[roomID]
	c.mu.RUnlock()

	if !ok || !entry.ValidAt(c.now(), c.ttl) {
		return nil, nil
	}
	return &entry, nil
}

// Put stores entry, stamping CreatedAt when unset.
func (c *MemoryCache) Put(_ context.Context, entry domain.CacheEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}

	c.mu.Lock()
	c.entries[entry.RoomID] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]domain.CacheEntry)
	c.mu.Unlock()
	return nil
}
