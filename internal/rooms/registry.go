// Package rooms owns the room -> connection membership of one session shard.
package rooms

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
)

// Conn is a live client connection as seen by the registry.
//
// The transport must invoke every NotifyClose callback exactly once when the
// connection closes, including callbacks registered after it already closed.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Closed() bool
	NotifyClose(fn func())
}

// room is one chat session. members is guarded by mu; dead is set under mu when
// the room is emptied and is never reset.
type room struct {
	mu      sync.RWMutex
	members map[Conn]domain.Profile
	size    atomic.Int64
	dead    atomic.Bool
}

func newRoom() *room {
	return &room{members: make(map[Conn]domain.Profile)}
}

// Registry maps room IDs to rooms. mu only guards the map itself; membership
// changes lock the room alone, so unrelated rooms never contend.
type Registry struct {
	serverID string
	logger   logger.Logger
	metrics  *metrics.ShardMetrics

	mu    sync.RWMutex
	rooms map[string]*room

	connections atomic.Int64
	liveRooms   atomic.Int64
}

// NewRegistry creates an empty registry for the shard identified by serverID.
// m may be nil.
func NewRegistry(serverID string, log logger.Logger, m *metrics.ShardMetrics) *Registry {
	return &Registry{
		serverID: serverID,
		logger:   log,
		metrics:  m,
		rooms:    make(map[string]*room),
	}
}

// ServerID returns the shard identity reported in snapshots.
func (r *Registry) ServerID() string {
	return r.serverID
}

// Join adds conn to roomID, creating the room if needed, announces the member
// to the whole room (newcomer included) and subscribes Leave to the
// connection's close notification.
func (r *Registry) Join(roomID string, conn Conn, profile domain.Profile) {
	for {
		rm := r.getOrCreate(roomID)

		rm.mu.Lock()
		if rm.dead.Load() {
			// Emptied and unlinked between lookup and lock.
			rm.mu.Unlock()
			continue
		}
		if _, exists := rm.members[conn]; !exists {
			rm.size.Add(1)
			r.connections.Add(1)
		}
		rm.members[conn] = profile
		rm.mu.Unlock()
		break
	}

	r.publishLoad()
	r.logger.Debug("member joined",
		logger.String("room", roomID),
		logger.String("conn", conn.ID()),
		logger.String("user_id", profile.ID))

	r.Broadcast(roomID, joinedEvent(profile))
	r.metrics.RecordMessage(metrics.MessageJoined)

	conn.NotifyClose(func() { r.Leave(roomID, conn) })
}

// Leave removes conn from roomID. It is idempotent: only a call that actually
// removed a member announces the departure. An emptied room is deleted.
func (r *Registry) Leave(roomID string, conn Conn) {
	rm := r.lookup(roomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	profile, removed := rm.members[conn]
	if removed {
		delete(rm.members, conn)
		rm.size.Add(-1)
		r.connections.Add(-1)
	}
	empty := len(rm.members) == 0
	if empty {
		rm.dead.Store(true)
	}
	rm.mu.Unlock()

	if empty {
		r.mu.Lock()
		if r.rooms[roomID] == rm {
			delete(r.rooms, roomID)
			r.liveRooms.Add(-1)
		}
		r.mu.Unlock()
	}

	if !removed {
		return
	}

	r.publishLoad()
	r.logger.Debug("member left",
		logger.String("room", roomID),
		logger.String("conn", conn.ID()),
		logger.String("user_id", profile.ID),
		logger.Bool("room_closed", empty))

	if !empty {
		r.Broadcast(roomID, leftEvent(profile.ID))
		r.metrics.RecordMessage(metrics.MessageLeft)
	}
}

// Members returns the profiles in roomID ordered by member ID, or an empty
// slice when the room does not exist.
func (r *Registry) Members(roomID string) []domain.Profile {
	rm := r.lookup(roomID)
	if rm == nil {
		return []domain.Profile{}
	}

	rm.mu.RLock()
	profiles := make([]domain.Profile, 0, len(rm.members))
	for _, p := range rm.members {
		profiles = append(profiles, p)
	}
	rm.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].ID == profiles[j].ID {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].ID < profiles[j].ID
	})
	return profiles
}

// Exists reports whether roomID currently has members.
func (r *Registry) Exists(roomID string) bool {
	rm := r.lookup(roomID)
	return rm != nil && rm.size.Load() > 0
}

// Broadcast sends msg to every open connection in roomID and returns how many
// accepted it. Broadcasting to an absent room is a no-op returning 0. Closed
// connections are skipped and send failures are logged, not returned.
func (r *Registry) Broadcast(roomID string, msg []byte) int {
	rm := r.lookup(roomID)
	if rm == nil {
		return 0
	}

	rm.mu.RLock()
	conns := make([]Conn, 0, len(rm.members))
	for c := range rm.members {
		conns = append(conns, c)
	}
	rm.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		if c.Closed() {
			continue
		}
		if err := c.Send(msg); err != nil {
			r.logger.Debug("broadcast send failed",
				logger.String("room", roomID),
				logger.String("conn", c.ID()),
				logger.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Snapshot returns the shard's current load and room ownership. Each room's
// count is read atomically; rooms that are being torn down are excluded.
func (r *Registry) Snapshot() domain.ShardSnapshot {
	r.mu.RLock()
	owned := make(map[string]int, len(r.rooms))
	total := 0
	for id, rm := range r.rooms {
		n := int(rm.size.Load())
		if n <= 0 {
			continue
		}
		owned[id] = n
		total += n
	}
	r.mu.RUnlock()

	return domain.ShardSnapshot{
		ServerID:        r.serverID,
		ConnectionCount: total,
		RoomCount:       len(owned),
		Rooms:           owned,
	}
}

func (r *Registry) lookup(roomID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) getOrCreate(roomID string) *room {
	if rm := r.lookup(roomID); rm != nil && !rm.dead.Load() {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok || rm.dead.Load() {
		if !ok {
			r.liveRooms.Add(1)
		}
		rm = newRoom()
		r.rooms[roomID] = rm
	}
	return rm
}

func (r *Registry) publishLoad() {
	r.metrics.SetLoad(int(r.connections.Load()), int(r.liveRooms.Load()))
}
