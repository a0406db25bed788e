// Package ws is the shard's websocket transport.
package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultReadLimit caps an inbound message.
	DefaultReadLimit int64 = 64 << 10

	// DefaultPongWait is how long a peer may stay silent before it is dropped.
	DefaultPongWait = 60 * time.Second
)

// ErrClosed is returned by Send after the connection closed.
var ErrClosed = errors.New("websocket connection closed")

// Conn adapts a gorilla connection to rooms.Conn.
//
// gorilla allows one concurrent writer, so writes are serialised by writeMu.
// Close hooks run exactly once, including hooks added after Close.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
	stop    chan struct{}

	hooksMu sync.Mutex
	hooks   []func()
	done    bool
}

// NewConn wraps ws. writeTimeout defaults to DefaultWriteTimeout.
func NewConn(id string, ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Conn{id: id, ws: ws, writeTimeout: writeTimeout, stop: make(chan struct{})}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Closed() bool { return c.closed.Load() }

// Send writes msg as a single text frame.
func (c *Conn) Send(msg []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Keepalive caps inbound messages at limit and drops the peer when no pong
// arrives within pongWait. Pings go out every pongWait/2 until Close.
// It must be called before the read loop starts.
func (c *Conn) Keepalive(limit int64, pongWait time.Duration) error {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}

	c.ws.SetReadLimit(limit)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop(pongWait / 2)
	return nil
}

func (c *Conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func (c *Conn) ping() error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// NotifyClose registers fn to run when the connection closes. If it already
// closed, fn runs immediately.
func (c *Conn) NotifyClose(fn func()) {
	c.hooksMu.Lock()
	if !c.done {
		c.hooks = append(c.hooks, fn)
		c.hooksMu.Unlock()
		return
	}
	c.hooksMu.Unlock()
	fn()
}

// Close sends a close frame, releases the socket and fires the close hooks.
// Only the first call has any effect.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stop)

	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.ws.Close()

	c.hooksMu.Lock()
	hooks := c.hooks
	c.hooks = nil
	c.done = true
	c.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return err
}
