// Package assets implements the asset-exchange engine (§4.4): manifest
// announce, need-list computation, chunk streaming with backpressure, and
// opportunistic assembly notification.
package assets

import (
	"clashlink/internal/cas"
	"clashlink/internal/wire"
)

// ReceiverState is the per-peer-session state machine (§4.4 "receiving side").
type ReceiverState int

const (
	Idle ReceiverState = iota
	Awaiting
	Ready
)

// Receiver tracks one pending manifest's assembly progress against a CAS.
type Receiver struct {
	store   *cas.Store
	pending *wire.Manifest
	state   ReceiverState
}

// NewReceiver returns an idle receiver backed by store.
func NewReceiver(store *cas.Store) *Receiver {
	return &Receiver{store: store, state: Idle}
}

// State returns the current state machine state.
func (r *Receiver) State() ReceiverState { return r.state }

// PendingManifest returns the last manifest received, or nil.
func (r *Receiver) PendingManifest() *wire.Manifest { return r.pending }

// HandleManifest processes an incoming Manifest: computes the missing chunk
// set, remembers it as the pending manifest, and transitions to Ready
// (nothing missing) or Awaiting. needed is empty and ready is true when the
// bundle is already fully present in the CAS.
func (r *Receiver) HandleManifest(m wire.Manifest) (needed []string, ready bool) {
	r.pending = &m
	if r.assembled(m) {
		r.state = Ready
		return nil, true
	}
	r.state = Awaiting
	return r.store.Missing(m.ChunkHashes()), false
}

// HandleChunk stores an incoming (possibly compressed) chunk payload and
// re-checks the pending manifest. A chunk whose hash isn't referenced by the
// pending manifest is still stored (future-proofing per §4.4) but never by
// itself causes a state transition.
func (r *Receiver) HandleChunk(c wire.Chunk) (ready bool, err error) {
	raw, err := decompress(c.Payload)
	if err != nil {
		return false, err
	}
	r.store.Put(c.Hash, raw)

	if r.pending == nil || r.state == Ready {
		return false, nil
	}
	if r.assembled(*r.pending) {
		r.state = Ready
		return true, nil
	}
	return false, nil
}

func (r *Receiver) assembled(m wire.Manifest) bool {
	for _, h := range m.ChunkHashes() {
		if !r.store.Has(h) {
			return false
		}
	}
	if m.EffectiveType() == "sprite" {
		atlas, ok := m.Meta["atlas"]
		if !ok || !r.store.Has(atlas) {
			return false
		}
	}
	return true
}
