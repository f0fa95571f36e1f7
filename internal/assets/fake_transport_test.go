package assets

import "sync"

// fakeTransport is an in-memory Transport used by tests: Send appends to
// Sent (wiredTransport in engine_test.go adds delivery to a peer engine);
// BufferedAmount is whatever
// the test sets it to, letting a test script backpressure deterministically.
type fakeTransport struct {
	mu       sync.Mutex
	Sent     [][]byte
	buffered int
	lowFn    func()
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), frame...)
	f.Sent = append(f.Sent, cp)
	return nil
}

func (f *fakeTransport) BufferedAmount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

func (f *fakeTransport) SetBufferedAmountLowHandler(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lowFn = fn
}

// setBuffered updates the simulated backlog and, when it drops to or below
// LowWaterMark, invokes the registered handler — mirroring a real data
// channel's bufferedamountlow event.
func (f *fakeTransport) setBuffered(n int) {
	f.mu.Lock()
	fn := f.lowFn
	wasHigh := f.buffered > LowWaterMark
	f.buffered = n
	isLow := n <= LowWaterMark
	f.mu.Unlock()
	if wasHigh && isLow && fn != nil {
		fn()
	}
}

func (f *fakeTransport) drain() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.Sent
	f.Sent = nil
	return out
}
