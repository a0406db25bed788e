package domain

import (
	"net"
	"strconv"
)

// ShardAddress identifies one session-server instance as reported by discovery.
//
// It is produced fresh on every discovery pass and never mutated.
type ShardAddress struct {
	// ID is derived from the naming-service record.
	// SRV: first DNS label of the target. A fallback: the IP itself.
	ID string `json:"id"`

	// Address is the routable host (DNS name or IP, no trailing dot).
	Address string `json:"address"`

	// Port is the HTTP port of the shard.
	Port int `json:"port"`
}

// HostPort returns "address:port", bracketing IPv6 literals.
func (a ShardAddress) HostPort() string {
	return net.JoinHostPort(a.Address, strconv.Itoa(a.Port))
}

// ShardSnapshot is a point-in-time view of one shard's load and ownership.
//
// Rooms maps each owned room ID to its member count; membership in the map is
// what makes the shard authoritative for that room.
type ShardSnapshot struct {
	ServerID        string         `json:"serverId"`
	Address         string         `json:"address"`
	ConnectionCount int            `json:"connectionCount"`
	RoomCount       int            `json:"roomCount"`
	Rooms           map[string]int `json:"rooms"`
}

// Owns reports whether the shard currently holds roomID.
func (s ShardSnapshot) Owns(roomID string) bool {
	_, ok := s.Rooms[roomID]
	return ok
}

// FleetView is the ordered result of one aggregation pass.
//
// Servers keeps discovery order. Failed counts shards that were discovered but
// could not be read.
type FleetView struct {
	Count   int             `json:"count"`
	Failed  int             `json:"failed"`
	Servers []ShardSnapshot `json:"servers"`
}

// Empty reports whether no shard answered.
func (v FleetView) Empty() bool {
	return len(v.Servers) == 0
}
