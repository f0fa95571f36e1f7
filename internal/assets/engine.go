package assets

import (
	"clashlink/internal/cas"
	"clashlink/internal/wire"
)

// Engine wires a Receiver and a Sender to one CAS and one Transport,
// dispatching the three asset-channel opcodes it owns (Manifest,
// NeedChunks, Chunk) and notifying the orchestrator when a manifest is
// fully assembled. ScriptPush and GameStart travel on the same channel but
// are opcodes the orchestrator dispatches directly (§4.4).
type Engine struct {
	Store    *cas.Store
	Receiver *Receiver
	Sender   *Sender

	transport Transport
	onReady   func(wire.Manifest)
}

// New constructs an Engine over store and transport. onReady is invoked
// exactly once per manifest, the moment it transitions to Ready.
func New(store *cas.Store, transport Transport, onReady func(wire.Manifest)) *Engine {
	return &Engine{
		Store:     store,
		Receiver:  NewReceiver(store),
		Sender:    NewSender(store, transport),
		transport: transport,
		onReady:   onReady,
	}
}

// Announce sends a Manifest frame describing an asset bundle this peer is
// offering, e.g. after the operator selects local asset files.
func (e *Engine) Announce(m wire.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	frame, err := wire.EncodeManifest(m)
	if err != nil {
		return err
	}
	return e.transport.Send(frame)
}

// Handle decodes and processes one incoming assets-channel frame whose
// opcode is Manifest, NeedChunks, or Chunk. Any other opcode is returned
// unhandled (ok=false) so the orchestrator can route it (ScriptPush,
// GameStart). A malformed frame is dropped, never panics (§7).
func (e *Engine) Handle(frame []byte) (ok bool, err error) {
	op, payload, err := wire.PeekOpcode(frame)
	if err != nil {
		return false, err
	}

	switch op {
	case wire.OpManifest:
		m, err := wire.DecodeManifest(payload)
		if err != nil {
			return true, err
		}
		if err := m.Validate(); err != nil {
			return true, err
		}
		needed, ready := e.Receiver.HandleManifest(m)
		if ready {
			e.notifyReady(m)
			return true, nil
		}
		if len(needed) > 0 {
			nc, err := wire.EncodeNeedChunks(needed)
			if err != nil {
				return true, err
			}
			return true, e.transport.Send(nc)
		}
		return true, nil

	case wire.OpNeedChunks:
		n, err := wire.DecodeNeedChunks(payload)
		if err != nil {
			return true, err
		}
		return true, e.Sender.HandleNeedChunks(n)

	case wire.OpChunk:
		c, err := wire.DecodeChunk(payload)
		if err != nil {
			return true, err
		}
		ready, err := e.Receiver.HandleChunk(c)
		if err != nil {
			return true, err
		}
		if ready && e.Receiver.PendingManifest() != nil {
			e.notifyReady(*e.Receiver.PendingManifest())
		}
		return true, nil

	default:
		return false, nil
	}
}

func (e *Engine) notifyReady(m wire.Manifest) {
	if e.onReady != nil {
		e.onReady(m)
	}
}

// AnnounceLocalAsset is a convenience for building and announcing a
// Manifest from locally loaded bytes: it hashes and stores each chunk,
// populates the Manifest's chunk list, and sends it.
func (e *Engine) AnnounceLocalAsset(id, assetType, entry string, chunks map[string][]byte, meta map[string]string) error {
	m := wire.Manifest{ID: id, Type: assetType, Entry: entry, Meta: meta}
	for mime, raw := range chunks {
		h := cas.HashOf(raw)
		e.Store.Put(h, raw)
		m.Chunks = append(m.Chunks, wire.ManifestChunk{Hash: h, Size: len(raw), Mime: mime})
	}
	return e.Announce(m)
}
