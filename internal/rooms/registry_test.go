package rooms

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	closed   bool
	sendErr  error
	received [][]byte
	onClose  []func()
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.received = append(c.received, msg)
	return nil
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) NotifyClose(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		fn()
		return
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

// markClosed flips the closed flag without firing callbacks.
func (c *fakeConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Close fires registered callbacks once, like the websocket transport.
func (c *fakeConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hooks := c.onClose
	c.onClose = nil
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *fakeConn) messages() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.received))
	for _, raw := range c.received {
		var m map[string]any
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

func newTestRegistry() *Registry {
	return NewRegistry("shard-a", logger.Nop(), nil)
}

func TestRoomLifecycle(t *testing.T) {
	reg := newTestRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	m1 := domain.Profile{ID: "m1", Name: "Alice"}
	m2 := domain.Profile{ID: "m2", Name: "Bob"}

	reg.Join("R", c1, m1)
	reg.Join("R", c2, m2)
	assert.Equal(t, []domain.Profile{m1, m2}, reg.Members("R"))

	reg.Leave("R", c1)
	assert.Equal(t, []domain.Profile{m2}, reg.Members("R"))
	assert.True(t, reg.Exists("R"))

	reg.Leave("R", c2)
	assert.Empty(t, reg.Members("R"))
	assert.False(t, reg.Exists("R"))

	snap := reg.Snapshot()
	assert.Equal(t, 0, snap.RoomCount)
	assert.False(t, snap.Owns("R"))
}

func TestJoinBroadcastsToEveryoneIncludingNewcomer(t *testing.T) {
	reg := newTestRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")

	reg.Join("R", c1, domain.Profile{ID: "m1", Name: "Alice"})
	reg.Join("R", c2, domain.Profile{ID: "m2", Name: "Bob"})

	msgs1 := c1.messages()
	require.Len(t, msgs1, 2)
	assert.Equal(t, TypeUserJoined, msgs1[1]["type"])
	assert.Equal(t, map[string]any{"id": "m2", "name": "Bob"}, msgs1[1]["user"])

	msgs2 := c2.messages()
	require.Len(t, msgs2, 1)
	assert.Equal(t, TypeUserJoined, msgs2[0]["type"])
}

func TestLeaveBroadcastsOnlyWhenMemberRemoved(t *testing.T) {
	reg := newTestRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("R", c1, domain.Profile{ID: "m1"})
	reg.Join("R", c2, domain.Profile{ID: "m2"})
	before := len(c2.messages())

	reg.Leave("R", c1)
	reg.Leave("R", c1) // second leave is a no-op

	msgs := c2.messages()
	require.Len(t, msgs, before+1)
	assert.Equal(t, TypeUserLeft, msgs[before]["type"])
	assert.Equal(t, "m1", msgs[before]["userId"])
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	reg := newTestRegistry()
	reg.Leave("missing", newFakeConn("c1"))
	assert.False(t, reg.Exists("missing"))
}

func TestCloseTriggersLeaveExactlyOnce(t *testing.T) {
	reg := newTestRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("R", c1, domain.Profile{ID: "m1"})
	reg.Join("R", c2, domain.Profile{ID: "m2"})
	before := len(c2.messages())

	c1.Close()
	c1.Close()

	assert.Equal(t, []domain.Profile{{ID: "m2"}}, reg.Members("R"))
	assert.Len(t, c2.messages(), before+1)
}

func TestJoinAfterCloseLeavesImmediately(t *testing.T) {
	reg := newTestRegistry()
	c := newFakeConn("c1")
	c.Close()

	reg.Join("R", c, domain.Profile{ID: "m1"})

	assert.False(t, reg.Exists("R"))
}

func TestBroadcastFanOut(t *testing.T) {
	reg := newTestRegistry()
	open1, open2, closed := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	reg.Join("R", open1, domain.Profile{ID: "1"})
	reg.Join("R", open2, domain.Profile{ID: "2"})
	reg.Join("R", closed, domain.Profile{ID: "3"})
	closed.markClosed()
	before := len(closed.messages())

	delivered := reg.Broadcast("R", ChatMessage("x", "hello"))

	assert.Equal(t, 2, delivered)
	assert.Len(t, closed.messages(), before)
	last := open1.messages()
	assert.Equal(t, "hello", last[len(last)-1]["text"])
}

func TestBroadcastSkipsSendFailures(t *testing.T) {
	reg := newTestRegistry()
	good, bad := newFakeConn("good"), newFakeConn("bad")
	reg.Join("R", good, domain.Profile{ID: "1"})
	reg.Join("R", bad, domain.Profile{ID: "2"})
	bad.sendErr = errors.New("broken pipe")

	assert.Equal(t, 1, reg.Broadcast("R", []byte("x")))
}

func TestBroadcastAbsentRoom(t *testing.T) {
	reg := newTestRegistry()
	assert.Equal(t, 0, reg.Broadcast("nope", []byte("x")))
}

func TestSnapshot(t *testing.T) {
	reg := newTestRegistry()
	reg.Join("R1", newFakeConn("a"), domain.Profile{ID: "1"})
	reg.Join("R1", newFakeConn("b"), domain.Profile{ID: "2"})
	reg.Join("R2", newFakeConn("c"), domain.Profile{ID: "3"})

	snap := reg.Snapshot()

	assert.Equal(t, "shard-a", snap.ServerID)
	assert.Equal(t, 3, snap.ConnectionCount)
	assert.Equal(t, 2, snap.RoomCount)
	assert.Equal(t, map[string]int{"R1": 2, "R2": 1}, snap.Rooms)
}

func TestConcurrentJoinLeave(t *testing.T) {
	reg := newTestRegistry()
	const rooms, perRoom = 8, 25

	var wg sync.WaitGroup
	conns := make([][]*fakeConn, rooms)
	for r := 0; r < rooms; r++ {
		conns[r] = make([]*fakeConn, perRoom)
		for i := 0; i < perRoom; i++ {
			conns[r][i] = newFakeConn(fmt.Sprintf("r%d-c%d", r, i))
		}
	}

	for r := 0; r < rooms; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(roomID string, c *fakeConn, id string) {
				defer wg.Done()
				reg.Join(roomID, c, domain.Profile{ID: id})
				_ = reg.Snapshot()
				reg.Broadcast(roomID, []byte("ping"))
			}(fmt.Sprintf("room-%d", r), conns[r][i], fmt.Sprintf("%d", i))
		}
	}
	wg.Wait()

	snap := reg.Snapshot()
	require.Equal(t, rooms*perRoom, snap.ConnectionCount)
	require.Equal(t, rooms, snap.RoomCount)

	for r := 0; r < rooms; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(c *fakeConn) {
				defer wg.Done()
				c.Close()
			}(conns[r][i])
		}
	}
	wg.Wait()

	snap = reg.Snapshot()
	assert.Equal(t, 0, snap.ConnectionCount)
	assert.Equal(t, 0, snap.RoomCount)
	assert.Empty(t, snap.Rooms)
}

func TestChurnOnSameRoomKeepsInvariant(t *testing.T) {
	reg := newTestRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(fmt.Sprintf("c%d", i))
			reg.Join("hot", c, domain.Profile{ID: fmt.Sprintf("%d", i)})
			c.Close()
		}(i)
	}
	wg.Wait()

	assert.False(t, reg.Exists("hot"))
	assert.Equal(t, 0, reg.Snapshot().ConnectionCount)
}
