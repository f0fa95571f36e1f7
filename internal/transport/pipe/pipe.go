// Package pipe implements an in-process, loopback Transport for local
// two-peer testing (§6: "cmd/clashhost wires them to an in-process pipe"),
// satisfying both assets.Transport and live.Transport. Grounded on the
// teacher's transport/ws split between an inbound queue drained by the
// event loop and an outbound write path, simplified from goroutines+network
// sockets to a mutex-guarded in-memory queue since there is no real network
// to block on locally.
package pipe

import "sync"

// Endpoint is one side of a loopback pipe pair. Send enqueues a frame onto
// the peer's inbox; Drain lets the owning event loop pop everything queued
// for it since the last call, mirroring the "poll for decoded frames"
// suspension point from §5.
type Endpoint struct {
	mu    sync.Mutex
	inbox [][]byte

	peer *Endpoint

	lowMu sync.Mutex
	lowFn func()
}

// NewPair returns two endpoints wired to each other: a.Send delivers to
// b's inbox and vice versa.
func NewPair() (a, b *Endpoint) {
	a = &Endpoint{}
	b = &Endpoint{}
	a.peer = b
	b.peer = a
	return a, b
}

// Send enqueues frame on the peer's inbox. A loopback pipe never actually
// backs up, so this always succeeds immediately.
func (e *Endpoint) Send(frame []byte) error {
	cp := append([]byte(nil), frame...)
	e.peer.mu.Lock()
	e.peer.inbox = append(e.peer.inbox, cp)
	e.peer.mu.Unlock()
	return nil
}

// BufferedAmount always reports zero: a loopback pipe delivers
// synchronously into the peer's inbox with no outstanding backlog.
func (e *Endpoint) BufferedAmount() int { return 0 }

// SetBufferedAmountLowHandler satisfies assets.Transport. Since
// BufferedAmount never exceeds the high-water mark on a loopback pipe, the
// handler registered here is never invoked; it's kept only so Endpoint can
// stand in for a real congested transport in tests that want to drive it
// manually via Fire.
func (e *Endpoint) SetBufferedAmountLowHandler(fn func()) {
	e.lowMu.Lock()
	e.lowFn = fn
	e.lowMu.Unlock()
}

// Fire invokes the registered buffered-amount-low handler, if any — used by
// tests that want to exercise the backpressure-resume path over a pipe
// pair without a real congested transport.
func (e *Endpoint) Fire() {
	e.lowMu.Lock()
	fn := e.lowFn
	e.lowMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Drain returns and clears every frame queued for this endpoint since the
// last Drain call, in delivery order.
func (e *Endpoint) Drain() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.inbox
	e.inbox = nil
	return out
}

// Pending reports how many frames are queued without draining them.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inbox)
}
