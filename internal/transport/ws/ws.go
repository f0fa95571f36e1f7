// Package ws implements a real network Transport over a WebSocket
// connection, for running two peers as two separate OS processes rather
// than only in-process over internal/transport/pipe. Grounded directly on
// the teacher's internal/transport/ws/server.go: a reader goroutine that
// blocks on Conn.ReadMessage, and a writer goroutine that drains an
// outbound channel applying write deadlines, joined by a channel rather
// than a shared lock. The browser side of this channel is a WebRTC data
// channel per spec §1/§6 — this package is the operator-side real
// transport used by cmd/clashhost to drive two real processes, not a
// substitute for that browser-side contract.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second

	// outboxDepth bounds how many frames may be queued for the writer
	// goroutine before Send blocks; real backpressure is reported through
	// BufferedAmount/SetBufferedAmountLowHandler instead of this depth.
	outboxDepth = 256

	// lowWaterMark mirrors internal/assets.LowWaterMark by value (1 MiB):
	// this package stays free of a dependency on the asset-exchange
	// package, but the threshold at which the registered handler fires
	// must still match the one the asset engine waits for.
	lowWaterMark = 1 << 20
)

// Conn adapts one *websocket.Conn to both assets.Transport and
// live.Transport, plus a Drain method an event loop can poll the way it
// polls internal/transport/pipe.Endpoint.
type Conn struct {
	conn *websocket.Conn

	writeCh chan []byte
	done    chan struct{}
	failOne sync.Once
	failErr error

	mu       sync.Mutex
	buffered int
	lowFn    func()

	inboxMu sync.Mutex
	inbox   [][]byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Accept upgrades an incoming HTTP request to a WebSocket and wraps it in a
// Conn with its reader/writer goroutines already running.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: upgrade: %w", err)
	}
	return newConn(raw), nil
}

// Dial connects to a ws:// or wss:// URL and wraps the resulting
// connection in a Conn with its reader/writer goroutines already running.
func Dial(ctx context.Context, url string) (*Conn, error) {
	raw, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	return newConn(raw), nil
}

func newConn(raw *websocket.Conn) *Conn {
	c := &Conn{
		conn:    raw,
		writeCh: make(chan []byte, outboxDepth),
		done:    make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

// Send enqueues frame for the writer goroutine. Accounted into
// BufferedAmount immediately, decremented once the write actually
// completes, matching a real data channel's bufferedAmount semantics.
func (c *Conn) Send(frame []byte) error {
	cp := append([]byte(nil), frame...)
	c.mu.Lock()
	c.buffered += len(cp)
	c.mu.Unlock()

	select {
	case c.writeCh <- cp:
		return nil
	case <-c.done:
		return c.closedErr()
	}
}

// BufferedAmount reports the outbound byte backlog not yet written to the
// underlying socket.
func (c *Conn) BufferedAmount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

// SetBufferedAmountLowHandler registers fn to run once BufferedAmount()
// falls to or below the low-water mark after a write completes.
func (c *Conn) SetBufferedAmountLowHandler(fn func()) {
	c.mu.Lock()
	c.lowFn = fn
	c.mu.Unlock()
}

// Drain returns and clears every frame read from the socket since the last
// call, in arrival order — the event loop's suspension point, mirroring
// internal/transport/pipe.Endpoint.Drain.
func (c *Conn) Drain() [][]byte {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()
	out := c.inbox
	c.inbox = nil
	return out
}

// Close tears down both goroutines and the underlying socket.
func (c *Conn) Close() error {
	c.fail(errors.New("ws: closed by caller"))
	return nil
}

func (c *Conn) writeLoop() {
	for {
		select {
		case b := <-c.writeCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.BinaryMessage, b)

			c.mu.Lock()
			c.buffered -= len(b)
			buffered := c.buffered
			fn := c.lowFn
			c.mu.Unlock()

			if err != nil {
				c.fail(err)
				return
			}
			if buffered <= lowWaterMark && fn != nil {
				fn()
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readLoop() {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		cp := append([]byte(nil), msg...)
		c.inboxMu.Lock()
		c.inbox = append(c.inbox, cp)
		c.inboxMu.Unlock()
	}
}

func (c *Conn) fail(err error) {
	c.failOne.Do(func() {
		c.failErr = err
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Conn) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return fmt.Errorf("ws: send on closed connection: %w", c.failErr)
	}
	return errors.New("ws: send on closed connection")
}
