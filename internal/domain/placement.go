package domain

import "time"

// Placement sources, also used as metric label values.
const (
	SourceCache       = "cache"
	SourceSticky      = "sticky"
	SourceLeastLoaded = "least_loaded"
)

// Placement is the routing answer for one room.
type Placement struct {
	RoomID  string `json:"room"`
	ShardID string `json:"serverId"`
	Address string `json:"address"`
	Source  string `json:"source"`
}

// CacheEntry memoizes a placement decision.
//
// Entries are never mutated: invalidation is replacement or deletion.
type CacheEntry struct {
	RoomID    string    `json:"room"`
	ShardID   string    `json:"serverId"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidAt reports whether the entry may still be served at now.
func (e CacheEntry) ValidAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) <= ttl
}
