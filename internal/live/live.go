// Package live implements the live-input channel (§4.8): per-frame input
// send, ack bookkeeping, periodic state-hash emission, and the receive-side
// wiring into the rollback engine (setRemoteInput, rollbackFrom). The
// channel itself is unordered and never retransmits — dropped or reordered
// datagrams are expected and absorbed by rollback's prediction rule.
package live

import (
	"errors"

	"clashlink/internal/diagnostics"
	"clashlink/internal/rollback"
	"clashlink/internal/wire"
)

// FingerprintInterval is the number of frames between StateHash emissions
// (§2: "every 16 frames the state fingerprint").
const FingerprintInterval = 16

// Transport abstracts the unordered, lossy, message-oriented channel the
// live engine runs over — a real implementation adapts this to an
// unreliable/unordered WebRTC data channel; `cmd/clashhost`'s local
// two-peer mode uses internal/transport/pipe, which delivers every frame in
// order.
type Transport interface {
	Send(frame []byte) error
}

// Engine owns the live-channel side of one match: it drives wire.Input and
// wire.StateHash emission, and on receipt steers the rollback engine it
// holds a reference to (§3 "Ownership": "the live engine holds a reference
// to the rollback engine solely to inject remote inputs and trigger
// rollbacks").
type Engine struct {
	rb                  *rollback.Engine
	transport           Transport
	logger              *diagnostics.EventLogger
	fingerprintInterval uint16

	haveRemoteFrame bool
	lastRemoteFrame uint16
	peerAck         uint16
}

// New constructs a live engine bound to rb and transport. logger may be nil,
// in which case desync/overflow signals are dropped silently rather than
// logged — used by tests that don't care about the diagnostics side
// channel.
func New(rb *rollback.Engine, transport Transport, logger *diagnostics.EventLogger) *Engine {
	return &Engine{rb: rb, transport: transport, logger: logger, fingerprintInterval: FingerprintInterval}
}

// SetFingerprintInterval overrides the default 16-frame interval, e.g. from
// the orchestrator's loaded Config.FingerprintInterval. A non-positive value
// is ignored.
func (e *Engine) SetFingerprintInterval(n int) {
	if n > 0 {
		e.fingerprintInterval = uint16(n)
	}
}

// Rebind replaces the rollback engine this live engine steers, clearing ack
// bookkeeping tied to the old engine's frame numbering. Used when the
// orchestrator applies a new ScriptPush and discards the old rollback engine
// (§3 "Lifecycle": a fresh rollback engine is seeded from frame 0).
func (e *Engine) Rebind(rb *rollback.Engine) {
	e.rb = rb
	e.haveRemoteFrame = false
	e.lastRemoteFrame = 0
	e.peerAck = 0
}

// PeerAck returns the most recent ack value reported by the remote peer —
// the highest local frame it claims to have received — used by the
// orchestrator to reason about how far the history window needs to reach
// (§4.7 "History capacity").
func (e *Engine) PeerAck() uint16 { return e.peerAck }

// SendTick emits this tick's Input frame, and every FingerprintInterval
// frames also a StateHash frame, per §2's per-tick data flow and §4.8's
// "ack = latest-confirmed remote frame" contract.
func (e *Engine) SendTick(frame uint16, localMask uint16) error {
	ack := uint16(0)
	if e.haveRemoteFrame {
		ack = e.lastRemoteFrame
	}
	if err := e.transport.Send(wire.EncodeInput(wire.Input{Frame: frame, Mask: localMask, Ack: ack})); err != nil {
		return err
	}
	if frame%e.fingerprintInterval != 0 {
		return nil
	}
	state := e.rb.GetLatest()
	return e.transport.Send(wire.EncodeStateHash(wire.StateHash{Frame: frame, Hash: state.Fingerprint()}))
}

// Handle decodes and processes one incoming live-channel frame whose opcode
// is Input or StateHash. Any other opcode is returned unhandled (ok=false).
// A malformed frame is reported as E_MALFORMED_FRAME and dropped, never
// returned as an error that could crash the event loop (§7).
func (e *Engine) Handle(frame []byte) (ok bool, err error) {
	op, payload, err := wire.PeekOpcode(frame)
	if err != nil {
		e.log(diagnostics.MalformedFrame, 0, err.Error())
		return false, nil
	}

	switch op {
	case wire.OpInput:
		in, err := wire.DecodeInput(payload)
		if err != nil {
			e.log(diagnostics.MalformedFrame, 0, err.Error())
			return true, nil
		}
		e.handleInput(in)
		return true, nil

	case wire.OpStateHash:
		sh, err := wire.DecodeStateHash(payload)
		if err != nil {
			e.log(diagnostics.MalformedFrame, 0, err.Error())
			return true, nil
		}
		e.handleStateHash(sh)
		return true, nil

	default:
		return false, nil
	}
}

func (e *Engine) handleInput(in wire.Input) {
	e.rb.SetRemoteInput(in.Frame, in.Mask)
	e.peerAck = in.Ack
	if !e.haveRemoteFrame || sequenceAdvanced(e.lastRemoteFrame, in.Frame) {
		e.lastRemoteFrame = in.Frame
		e.haveRemoteFrame = true
	}

	if !e.rb.IsBefore(in.Frame) {
		return
	}
	if err := e.rb.RollbackFrom(in.Frame); err != nil {
		if errors.Is(err, rollback.ErrTooLateToRollback) {
			e.log(diagnostics.RingOverflow, in.Frame, "remote input for frame already out of history window")
			return
		}
		e.log(diagnostics.ScriptRuntime, in.Frame, err.Error())
	}
}

func (e *Engine) handleStateHash(sh wire.StateHash) {
	local, ok := e.rb.StateAt(sh.Frame)
	if !ok {
		// Frame has scrolled out of the history window or hasn't been
		// simulated yet; nothing to compare against.
		return
	}
	if local.Fingerprint() != sh.Hash {
		e.log(diagnostics.Desync, sh.Frame, "state fingerprint mismatch with peer")
	}
}

func (e *Engine) log(code string, frame uint16, msg string) {
	if e.logger == nil {
		return
	}
	_ = e.logger.Log(diagnostics.Status{Code: code, Frame: frame, Message: msg})
}

// sequenceAdvanced reports whether candidate is a later wire frame than cur
// under wrap-aware 16-bit sequence comparison, mirroring the rollback
// engine's own unwrap logic at the scale of "is this the newest Input we've
// seen" rather than full absolute-frame reconstruction.
func sequenceAdvanced(cur, candidate uint16) bool {
	delta := int16(candidate - cur)
	return delta > 0
}
