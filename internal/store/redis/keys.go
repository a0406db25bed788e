package redis

import (
	"fmt"
	"strings"
)

// KeyPrefixPlacement is the prefix for cached room placements.
const KeyPrefixPlacement = "roomrouter:placement:"

// PlacementKey returns the Redis key for a room's placement.
func PlacementKey(roomID string) string {
	return KeyPrefixPlacement + roomID
}

// ExtractRoomID extracts the room ID from a placement key.
func ExtractRoomID(key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefixPlacement) || len(key) == len(KeyPrefixPlacement) {
		return "", fmt.Errorf("invalid placement key: %s", key)
	}
	return key[len(KeyPrefixPlacement):], nil
}
