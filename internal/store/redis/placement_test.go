package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/placement"
)

// newTestClient connects to REDIS_ADDR and skips the test when it is unset.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background())
		_ = client.Close()
	})
	return client
}

func TestPlacementKey(t *testing.T) {
	assert.Equal(t, "roomrouter:placement:lobby", PlacementKey("lobby"))

	id, err := ExtractRoomID(PlacementKey("lobby"))
	require.NoError(t, err)
	assert.Equal(t, "lobby", id)

	_, err = ExtractRoomID("roomrouter:placement:")
	assert.Error(t, err)
	_, err = ExtractRoomID("session:lobby")
	assert.Error(t, err)
}

func TestNewPlacementStoreDefaultsTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	for _, ttl := range []time.Duration{0, -time.Second} {
		s := NewPlacementStore(client, ttl, nil)
		assert.Equal(t, placement.DefaultCacheTTL, s.ttl, "ttl %v", ttl)
	}
	assert.Equal(t, 5*time.Second, NewPlacementStore(client, 5*time.Second, nil).ttl)
}

func TestStoreZeroTTLStillExpires(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	s := NewPlacementStore(client, 0, nil)

	require.NoError(t, s.Put(ctx, domain.CacheEntry{RoomID: "lobby", ShardID: "ws-0"}))

	ttl, err := client.TTL(ctx, PlacementKey("lobby")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "key must carry an expiry")

	got, err := s.Get(ctx, "lobby")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ws-0", got.ShardID)
}

func TestStoreRoundTrip(t *testing.T) {
	client := newTestClient(t)
	store := NewPlacementStore(client, time.Minute, nil)
	ctx := context.Background()

	miss, err := store.Get(ctx, "R")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.Put(ctx, domain.CacheEntry{RoomID: "R", ShardID: "ws-1", Address: "10.0.0.2"}))

	hit, err := store.Get(ctx, "R")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "ws-1", hit.ShardID)
	assert.Equal(t, "10.0.0.2", hit.Address)

	ttl, err := client.TTL(ctx, PlacementKey("R")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestStoreExpiresOnRead(t *testing.T) {
	client := newTestClient(t)
	now := time.Now()
	store := NewPlacementStore(client, time.Minute, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.CacheEntry{RoomID: "R", ShardID: "ws-1"}))

	now = now.Add(time.Minute + time.Millisecond)
	hit, err := store.Get(ctx, "R")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestStoreClear(t *testing.T) {
	client := newTestClient(t)
	store := NewPlacementStore(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0).Err())
	for _, room := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(ctx, domain.CacheEntry{RoomID: room, ShardID: "ws-0"}))
	}

	require.NoError(t, store.Clear(ctx))

	for _, room := range []string{"a", "b", "c"} {
		hit, err := store.Get(ctx, room)
		require.NoError(t, err)
		assert.Nil(t, hit)
	}
	val, err := client.Get(ctx, "unrelated").Result()
	require.NoError(t, err)
	assert.Equal(t, "keep", val)
}

func TestStoreCorruptValue(t *testing.T) {
	client := newTestClient(t)
	store := NewPlacementStore(client, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, PlacementKey("R"), "{not json", time.Minute).Err())

	_, err := store.Get(ctx, "R")
	assert.Error(t, err)
}
