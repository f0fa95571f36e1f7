// Package rollback implements the input ring buffers, the history ring, and
// the predict/rollback re-simulation machinery (§4.7). Strategy (b) from §9
// is the chosen rollback strategy: a rollback fully re-initializes both VM
// instances and replays every frame from the seed, rather than snapshotting
// VM scope per history slot. It is always correct; replay length grows with
// frame count, which is an acceptable cost at this spec's scale (see
// DESIGN.md).
package rollback

import (
	"errors"
	"fmt"

	"clashlink/internal/sim"
	"clashlink/internal/vm"
)

// ErrTooLateToRollback is returned by RollbackFrom when the requested frame
// has already fallen out of the history window (§7 "ring overflow").
var ErrTooLateToRollback = errors.New("rollback: frame too old to recover")

// Player identifies which ring a local/remote input write targets.
type Player int

const (
	Player1 Player = 1
	Player2 Player = 2
)

// Engine owns the input rings, the history ring, and the pair of per-player
// VM instances for one match. It is not safe for concurrent use; the
// orchestrator and live engine both run on a single event loop (§5).
type Engine struct {
	localPlayer Player
	historySize int

	seed State

	newVM  func() vm.VM
	source []byte
	vm1    vm.VM
	vm2    vm.VM

	history    []State
	historyAbs []uint64
	historySet []bool

	localRing  [65536]uint16
	localSet   [65536]bool
	remoteRing [65536]uint16
	remoteSet  [65536]bool

	latestAbs uint64
}

// State is a re-export alias kept local to this package's call sites so
// callers don't need to import sim separately just to hold a snapshot.
type State = sim.State

// New constructs an Engine seeded at frame 0 with seedState, configured for
// localPlayer's ring, with history capacity historySize (must be >= 64 per
// §3). newVM constructs an unloaded VM instance (e.g. vm.NewRefVM); New
// loads src into a global VM and clones it twice, per §3's Script source
// lifecycle.
func New(localPlayer Player, historySize int, seedState State, newVM func() vm.VM, src []byte) (*Engine, error) {
	if historySize < 64 {
		return nil, fmt.Errorf("rollback: history size %d below minimum 64", historySize)
	}
	e := &Engine{
		localPlayer: localPlayer,
		historySize: historySize,
		seed:        seedState,
		newVM:       newVM,
		history:     make([]State, historySize),
		historyAbs:  make([]uint64, historySize),
		historySet:  make([]bool, historySize),
	}
	if err := e.loadScriptLocked(src); err != nil {
		return nil, err
	}
	e.commit(0, seedState)
	return e, nil
}

func (e *Engine) loadScriptLocked(src []byte) error {
	global := e.newVM()
	if !global.LoadSource(src) {
		return fmt.Errorf("rollback: script compile failed: %w", global.TakeLastError())
	}
	vm1 := global.Clone()
	if !vm1.LoadSource(src) {
		return fmt.Errorf("rollback: vm1 reload failed: %w", vm1.TakeLastError())
	}
	vm2 := global.Clone()
	if !vm2.LoadSource(src) {
		return fmt.Errorf("rollback: vm2 reload failed: %w", vm2.TakeLastError())
	}
	e.source = src
	e.vm1 = vm1
	e.vm2 = vm2
	return nil
}

// SetLocalInput writes mask into the local-player ring slot for frame.
func (e *Engine) SetLocalInput(frame uint16, mask uint16) {
	e.localRing[frame] = mask
	e.localSet[frame] = true
}

// SetRemoteInput writes mask into the remote-player ring slot for frame. It
// never fails or blocks rollback bookkeeping; the caller (the live engine)
// decides whether this write requires a RollbackFrom call.
func (e *Engine) SetRemoteInput(frame uint16, mask uint16) {
	e.remoteRing[frame] = mask
	e.remoteSet[frame] = true
}

// Latest returns the wire-form (wrapped) frame number of the most recently
// committed snapshot, for wrap-aware "f <= latest" comparisons by callers.
func (e *Engine) Latest() uint16 {
	return uint16(e.latestAbs & 0xFFFF)
}

// GetLatest returns a copy of the latest committed snapshot. State has no
// pointers or slices, so the returned value is already an independent copy.
func (e *Engine) GetLatest() State {
	idx := e.latestAbs % uint64(e.historySize)
	return e.history[idx]
}

// IsBefore reports whether wire frame f denotes a point at or before the
// engine's current latest frame, using wrap-aware distance per §9.
func (e *Engine) IsBefore(f uint16) bool {
	abs := e.unwrap(f)
	return abs <= e.latestAbs
}

// unwrap reconstructs the absolute frame counter nearest e.latestAbs whose
// low 16 bits equal wire, per §9's wrap-aware comparison requirement.
func (e *Engine) unwrap(wire uint16) uint64 {
	latestLow := int64(e.latestAbs & 0xFFFF)
	delta := int64(wire) - latestLow
	if delta > 32768 {
		delta -= 65536
	} else if delta < -32768 {
		delta += 65536
	}
	return uint64(int64(e.latestAbs) + delta)
}

// SimulateTo advances the simulation from latest to wire frame target,
// committing each intermediate frame to history.
func (e *Engine) SimulateTo(target uint16) {
	targetAbs := e.unwrap(target)
	for f := e.latestAbs + 1; f <= targetAbs; f++ {
		e.advanceOneFrame(f)
	}
}

func (e *Engine) advanceOneFrame(f uint64) {
	prev := e.stateAt(f - 1)
	wire := uint16(f & 0xFFFF)

	localMask := e.inputFor(&e.localRing, &e.localSet, wire, true)
	remoteMask := e.inputFor(&e.remoteRing, &e.remoteSet, wire, false)

	var i1, i2 sim.InputMask
	if e.localPlayer == Player1 {
		i1, i2 = sim.InputMask(localMask), sim.InputMask(remoteMask)
	} else {
		i1, i2 = sim.InputMask(remoteMask), sim.InputMask(localMask)
	}

	next := sim.Step(prev, i1, i2, e.vm1, e.vm2)
	e.commit(f, next)
}

// inputFor implements the §4.7 input lookup policy: use the mask stored at
// slot f; for the remote player, an unwritten slot falls back to the mask at
// f-1 (last-known prediction); for the local player, unwritten reads as
// zero.
func (e *Engine) inputFor(ring *[65536]uint16, set *[65536]bool, wire uint16, isLocal bool) uint16 {
	if set[wire] {
		return ring[wire]
	}
	if isLocal {
		return 0
	}
	prev := wire - 1
	return ring[prev]
}

func (e *Engine) stateAt(f uint64) State {
	if f == 0 {
		return e.seed
	}
	idx := f % uint64(e.historySize)
	return e.history[idx]
}

func (e *Engine) commit(f uint64, s State) {
	idx := f % uint64(e.historySize)
	e.history[idx] = s
	e.historyAbs[idx] = f
	e.historySet[idx] = true
	if f > e.latestAbs || f == 0 {
		e.latestAbs = f
	}
}

// RollbackFrom re-simulates every frame from the seed through the current
// latest frame, using fresh VM instances, then recommits each frame over the
// history ring. Called when a remote input for an earlier frame arrives
// after that frame (or a later one) was already committed on a prediction.
func (e *Engine) RollbackFrom(from uint16) error {
	fromAbs := e.unwrap(from)
	if fromAbs > e.latestAbs {
		// Nothing committed yet at or after this frame; the caller's
		// "f <= latest" gate should already prevent this, but a no-op here
		// keeps the engine crash-free regardless.
		return nil
	}
	if e.latestAbs-fromAbs >= uint64(e.historySize) {
		return ErrTooLateToRollback
	}

	if err := e.loadScriptLocked(e.source); err != nil {
		return err
	}

	latest := e.latestAbs
	e.latestAbs = 0
	e.commit(0, e.seed)
	for f := uint64(1); f <= latest; f++ {
		e.advanceOneFrame(f)
	}
	return nil
}

// StateAt returns the committed snapshot for wire frame f, and whether that
// frame is still live in the history window (it can have been overwritten by
// a later frame f+H, or not yet simulated). Used by the live engine to
// compare a peer's reported state fingerprint against the local history
// (§4.8 "log only" desync signal).
func (e *Engine) StateAt(f uint16) (State, bool) {
	abs := e.unwrap(f)
	if abs > e.latestAbs {
		return State{}, false
	}
	if e.latestAbs-abs >= uint64(e.historySize) {
		return State{}, false
	}
	idx := abs % uint64(e.historySize)
	if e.historyAbs[idx] != abs {
		return State{}, false
	}
	return e.history[idx], true
}

// HistoryFrameAt returns the frame number recorded at history slot f mod H
// and whether that slot has ever been written — used by tests to verify the
// "history[f mod H].frame = f" invariant.
func (e *Engine) HistoryFrameAt(f uint64) (uint64, bool) {
	idx := f % uint64(e.historySize)
	return e.historyAbs[idx], e.historySet[idx]
}
