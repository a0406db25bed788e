// Package redis stores placement decisions in Redis so every router replica
// shares them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/placement"
)

// PlacementStore implements placement.Cache on top of a Redis client.
//
// Keys carry a Redis TTL equal to the placement TTL; the stored CreatedAt is
// checked again on read so a skewed server clock cannot extend an entry.
type PlacementStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewPlacementStore creates a placement store. ttl defaults to
// placement.DefaultCacheTTL and now to time.Now.
func NewPlacementStore(client *redis.Client, ttl time.Duration, now func() time.Time) *PlacementStore {
	if ttl <= 0 {
		ttl = placement.DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PlacementStore{
		client: client,
		ttl:    ttl,
		now:    now,
	}
}

// Get returns the cached placement for roomID, or nil on miss or expiry.
func (s *PlacementStore) Get(ctx context.Context, roomID string) (*domain.CacheEntry, error) {
	data, err := s.client.Get(ctx, PlacementKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get placement: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal placement: %w", err)
	}
	if !entry.ValidAt(s.now(), s.ttl) {
		return nil, nil
	}
	return &entry, nil
}

// Put stores entry, overwriting any previous placement for the room.
func (s *PlacementStore) Put(ctx context.Context, entry domain.CacheEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal placement: %w", err)
	}

	if err := s.client.Set(ctx, PlacementKey(entry.RoomID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save placement: %w", err)
	}
	return nil
}

// Clear removes every cached placement.
func (s *PlacementStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixPlacement+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete placement key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to clear placements: %w", err)
	}
	return nil
}
