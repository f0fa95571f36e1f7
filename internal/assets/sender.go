package assets

import (
	"clashlink/internal/cas"
	"clashlink/internal/wire"
)

// Sender streams requested chunks to a peer over Transport, respecting
// backpressure (§4.4 "sending side").
type Sender struct {
	store     *cas.Store
	transport Transport
	queue     []string
}

// NewSender returns a sender backed by store, wired to resume draining its
// queue whenever transport reports buffered-amount-low.
func NewSender(store *cas.Store, transport Transport) *Sender {
	s := &Sender{store: store, transport: transport}
	transport.SetBufferedAmountLowHandler(func() { s.Pump() })
	return s
}

// HandleNeedChunks enqueues every requested hash that exists in the local
// CAS; a hash not present is silently skipped (§4.4 failure mode), and then
// drains as much of the queue as backpressure allows.
func (s *Sender) HandleNeedChunks(n wire.NeedChunks) error {
	for _, h := range n.Hashes {
		if s.store.Has(h) {
			s.queue = append(s.queue, h)
		}
	}
	return s.Pump()
}

// Pump sends queued chunks until the queue drains or the transport's
// buffered byte count exceeds HighWaterMark, in which case it stops and
// waits for the registered buffered-amount-low callback to resume it.
func (s *Sender) Pump() error {
	for len(s.queue) > 0 {
		if s.transport.BufferedAmount() > HighWaterMark {
			return nil
		}
		hash := s.queue[0]
		s.queue = s.queue[1:]

		raw, ok := s.store.Get(hash)
		if !ok {
			continue
		}
		frame, err := wire.EncodeChunk(wire.Chunk{Hash: hash, Offset: 0, Payload: compress(raw)})
		if err != nil {
			return err
		}
		if err := s.transport.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of chunks still queued to send.
func (s *Sender) Pending() int {
	return len(s.queue)
}
