// Package orchestrator wires the rollback engine, the asset-exchange
// engine, and the live-input engine into one per-match session (§4.9): it
// owns the lifecycle state machine, the 60 Hz fixed-tick accumulator, and
// the CAS and rollback engine per §3's "Ownership" rule. Grounded on the
// teacher's main tick-driving loop (`cmd/server/main.go`) generalized from a
// single authoritative world to a peer-owned rollback session.
package orchestrator

import (
	"fmt"

	"clashlink/internal/assets"
	"clashlink/internal/cas"
	"clashlink/internal/config"
	"clashlink/internal/diagnostics"
	"clashlink/internal/live"
	"clashlink/internal/rollback"
	"clashlink/internal/sim"
	"clashlink/internal/vm"
	"clashlink/internal/wire"
)

// Phase is the lifecycle state from §4.9 / §3 "Lifecycle".
type Phase int

const (
	Idle Phase = iota
	Loading
	Armed
	Running
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Armed:
		return "armed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Viewer is the rendering surface's interface to the core (§1: out of
// scope, a pure consumer of state snapshots).
type Viewer interface {
	OnState(sim.State)
}

// InputSampler is the local input sampler's interface to the core (§1: out
// of scope, produces a bitmask each tick).
type InputSampler interface {
	Sample() sim.InputMask
}

// Orchestrator is a single match session: it owns the CAS and the rollback
// engine exclusively (§3 "Ownership"), and holds the asset and live engines
// that each hold only the references they need.
type Orchestrator struct {
	cfg         config.Config
	localPlayer rollback.Player
	newVM       func() vm.VM
	seed        sim.State

	store           *cas.Store
	assetsEngine    *assets.Engine
	assetsTransport assets.Transport
	liveEngine      *live.Engine
	logger          *diagnostics.EventLogger

	viewer  Viewer
	sampler InputSampler

	rb *rollback.Engine

	phase         Phase
	assetsReady   bool
	scriptReady   bool
	gameStartSeen bool

	accumulator float64
	tickPeriod  float64
}

// defaultScript is the built-in fallback script source loaded before any
// ScriptPush arrives: RefVM's "idle" program issues move(0) every frame, so
// both fighters stand still until a real script is pushed.
var defaultScript = []byte("idle")

// New constructs an Orchestrator. assetsTransport and liveTransport back
// the two logical channels (§6); seed is the initial State both peers agree
// on before any script is applied.
func New(
	cfg config.Config,
	localPlayer rollback.Player,
	assetsTransport assets.Transport,
	liveTransport live.Transport,
	logger *diagnostics.EventLogger,
	viewer Viewer,
	sampler InputSampler,
	newVM func() vm.VM,
	seed sim.State,
) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:             cfg,
		localPlayer:     localPlayer,
		newVM:           newVM,
		seed:            seed,
		store:           cas.New(),
		assetsTransport: assetsTransport,
		logger:          logger,
		viewer:          viewer,
		sampler:         sampler,
		tickPeriod:      1.0 / float64(cfg.TickHz),
	}

	rb, err := rollback.New(localPlayer, cfg.History.Size, seed, newVM, defaultScript)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: seed rollback engine: %w", err)
	}
	o.rb = rb

	o.assetsEngine = assets.New(o.store, assetsTransport, o.onManifestReady)
	o.liveEngine = live.New(o.rb, liveTransport, logger)
	o.liveEngine.SetFingerprintInterval(cfg.FingerprintInterval)

	return o, nil
}

// Phase returns the current lifecycle state.
func (o *Orchestrator) Phase() Phase { return o.phase }

// Store returns the CAS this session's asset engine reads from and writes
// to, e.g. so a viewer can fetch assembled asset bytes by hash.
func (o *Orchestrator) Store() *cas.Store { return o.store }

// Latest returns the most recently simulated frame number.
func (o *Orchestrator) Latest() uint16 { return o.rb.Latest() }

// Announce sends a manifest describing a locally loaded asset bundle to the
// peer (§4.4). A convenience pass-through to the asset engine.
func (o *Orchestrator) Announce(m wire.Manifest) error {
	return o.assetsEngine.Announce(m)
}

// AnnounceLocalAsset hashes and stores chunks locally, announces the
// resulting manifest to the peer, and marks this peer's own half of the
// asset exchange ready (§4.9 gating). Used by a peer that has loaded its
// own mesh/sprite files and is offering them, as opposed to receiving a
// bundle from the other side.
func (o *Orchestrator) AnnounceLocalAsset(id, assetType, entry string, chunks map[string][]byte, meta map[string]string) error {
	if err := o.assetsEngine.AnnounceLocalAsset(id, assetType, entry, chunks, meta); err != nil {
		return err
	}
	o.MarkAssetsReady()
	return nil
}

func (o *Orchestrator) onManifestReady(wire.Manifest) {
	o.assetsReady = true
	o.recomputePhase()
}

// MarkAssetsReady records that this peer's own asset bundle (the one it
// loaded locally and announced to the other peer) is ready. It sets the
// same flag as onManifestReady's receive-path signal for a bundle coming
// *from* the peer; either one alone satisfies the asset condition for Arm
// (§4.9), and this peer does not wait for the other peer's bundle.
func (o *Orchestrator) MarkAssetsReady() {
	o.assetsReady = true
	o.recomputePhase()
}

// HandleAssetFrame routes one frame received on the assets channel: the
// asset engine handles Manifest/NeedChunks/Chunk; ScriptPush and GameStart
// are this package's own concern (§4.9).
func (o *Orchestrator) HandleAssetFrame(frame []byte) error {
	ok, err := o.assetsEngine.Handle(frame)
	if err != nil {
		// A malformed or undecodable frame is a diagnostics event, never a
		// fatal error that could crash the event loop (§7).
		o.log(diagnostics.MalformedFrame, err.Error())
		return nil
	}
	if ok {
		return nil
	}

	op, payload, err := wire.PeekOpcode(frame)
	if err != nil {
		o.log(diagnostics.MalformedFrame, err.Error())
		return nil
	}

	switch op {
	case wire.OpScriptPush:
		sp, err := wire.DecodeScriptPush(payload)
		if err != nil {
			o.log(diagnostics.MalformedFrame, err.Error())
			return nil
		}
		return o.applyScript(sp.Body)

	case wire.OpGameStart:
		o.gameStartSeen = true
		o.recomputePhase()
		return nil

	default:
		return nil
	}
}

// HandleLiveFrame routes one frame received on the live channel to the live
// engine.
func (o *Orchestrator) HandleLiveFrame(frame []byte) error {
	_, err := o.liveEngine.Handle(frame)
	return err
}

// PushScript loads src as this peer's own locally authored/selected script
// and announces it to the peer over the assets channel (§4.4 "Script
// pushes"), then applies it locally the same way a received ScriptPush is
// applied.
func (o *Orchestrator) PushScript(name string, src []byte) error {
	frame, err := wire.EncodeScriptPush(wire.ScriptPush{Name: name, Body: src})
	if err != nil {
		return err
	}
	if err := o.assetsTransport.Send(frame); err != nil {
		return err
	}
	return o.applyScript(src)
}

// applyScript implements §3's "Lifecycle": the rollback engine is discarded
// and a fresh one seeded from the initial state; history is wiped. The live
// engine is rebound to the fresh rollback engine.
func (o *Orchestrator) applyScript(src []byte) error {
	rb, err := rollback.New(o.localPlayer, o.cfg.History.Size, o.seed, o.newVM, src)
	if err != nil {
		o.log(diagnostics.ScriptCompile, err.Error())
		return fmt.Errorf("orchestrator: apply script: %w", err)
	}
	o.rb = rb
	o.liveEngine.Rebind(rb)
	o.scriptReady = true
	o.recomputePhase()
	return nil
}

// StartGame issues a local GameStart: it counts as "observed a GameStart"
// per §4.9 even before any frame is received from the peer.
func (o *Orchestrator) StartGame() error {
	if err := o.assetsTransport.Send(wire.EncodeGameStart()); err != nil {
		return err
	}
	o.gameStartSeen = true
	o.recomputePhase()
	return nil
}

// recomputePhase advances the lifecycle state machine forward only — once
// Running, nothing here ever demotes it back (a later ScriptPush still
// resets the rollback engine via applyScript, but gameplay continues).
func (o *Orchestrator) recomputePhase() {
	switch o.phase {
	case Running:
		return
	case Idle:
		o.phase = Loading
	}
	if o.assetsReady && o.scriptReady {
		o.phase = Armed
	}
	if o.phase == Armed && o.gameStartSeen {
		o.phase = Running
	}
}

// Tick accumulates dtSeconds of elapsed wall-time and drives as many fixed
// simulation steps as have come due (§4.9). Outside Running, the
// accumulator is reset to zero to prevent backlog once gating conditions
// are finally met.
func (o *Orchestrator) Tick(dtSeconds float64) error {
	if o.phase != Running {
		o.accumulator = 0
		return nil
	}
	o.accumulator += dtSeconds
	for o.accumulator >= o.tickPeriod {
		if err := o.step(); err != nil {
			return err
		}
		o.accumulator -= o.tickPeriod
	}
	return nil
}

// step drives exactly one simulation frame, in the order §5's "Ordering
// guarantees" requires: local input commit precedes simulateTo, which
// precedes viewer update and network emission.
func (o *Orchestrator) step() error {
	next := o.rb.Latest() + 1
	mask := uint16(o.sampler.Sample())

	o.rb.SetLocalInput(next, mask)
	o.rb.SimulateTo(next)

	state := o.rb.GetLatest()
	if o.viewer != nil {
		o.viewer.OnState(state)
	}
	return o.liveEngine.SendTick(next, mask)
}

func (o *Orchestrator) log(code, msg string) {
	if o.logger == nil {
		return
	}
	_ = o.logger.Log(diagnostics.Status{Code: code, Frame: o.rb.Latest(), Message: msg})
}
