// Command clashhost runs a match session either as two in-process peers
// over loopback pipes (for local soak-testing without a network) or as one
// real peer of a two-process session over WebSocket, matching the teacher's
// cmd/server/main.go shape: flag parsing, a signal-aware shutdown context,
// and a single wiring-and-run function per mode. The "host" mode accepts
// connections the way the teacher's transport/ws.Server does; "client"
// dials out to a running host.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"clashlink/internal/assets"
	"clashlink/internal/config"
	"clashlink/internal/diagnostics"
	"clashlink/internal/fixedpoint"
	"clashlink/internal/live"
	"clashlink/internal/orchestrator"
	"clashlink/internal/rollback"
	"clashlink/internal/sim"
	"clashlink/internal/transport/pipe"
	"clashlink/internal/transport/ws"
	"clashlink/internal/vm"
)

func main() {
	var (
		mode       = flag.String("mode", "loop", "loop (in-process two-peer demo), host (accept a real peer), or client (dial a host)")
		addr       = flag.String("addr", "localhost:8787", "host: address to listen on; client: host address to dial")
		configPath = flag.String("config", "", "path to a YAML config file (defaults built in if empty)")
		duration   = flag.Duration("duration", 5*time.Second, "how long to run the session")
		scriptSrc  = flag.String("script", "mirror", "RefVM program the first peer pushes to the other (idle|mirror)")
		logDir     = flag.String("log-dir", "./data/logs", "directory for rotating diagnostics event logs")
	)
	flag.Parse()

	sessionID := uuid.New().String()
	plain := !isatty.IsTerminal(os.Stdout.Fd())
	out := newStdoutLog(plain, sessionID)

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			out.Printf("config load failed, falling back to defaults: %v", err)
		} else {
			cfg = loaded
		}
	}

	eventLogger := diagnostics.NewEventLogger(*logDir, sessionID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch *mode {
	case "loop":
		err = runLoopback(ctx, out, cfg, eventLogger, *duration, *scriptSrc)
	case "host":
		err = runHost(ctx, out, cfg, eventLogger, *addr, *duration, *scriptSrc)
	case "client":
		err = runClient(ctx, out, cfg, eventLogger, *addr, *duration)
	default:
		err = fmt.Errorf("clashhost: unknown -mode %q (want loop, host, or client)", *mode)
	}
	if err != nil {
		out.Printf("session ended with error: %v", err)
		os.Exit(1)
	}
}

// stdoutLog is a thin wrapper around log.Logger that tags every line with
// the session id, matching the teacher's practice of stamping every server
// log line with a correlation id so two interleaved peers' output can be
// told apart.
type stdoutLog struct {
	*log.Logger
}

func newStdoutLog(plain bool, sessionID string) *stdoutLog {
	prefix := fmt.Sprintf("[%s] ", sessionID[:8])
	flags := log.LstdFlags
	if plain {
		flags = 0
	}
	return &stdoutLog{Logger: log.New(os.Stdout, prefix, flags)}
}

type loggingViewer struct {
	log   *stdoutLog
	label string
	every int
	n     int
}

func (v *loggingViewer) OnState(s sim.State) {
	v.n++
	if v.every <= 0 || v.n%v.every != 0 {
		return
	}
	v.log.Printf("%s frame=%d p1.x=%v p1.vx=%v p2.x=%v hp=%d/%d fp=%08x",
		v.label, v.n, s.P1.X, s.P1.VX, s.P2.X, s.P1.HP, s.P2.HP, s.Fingerprint())
}

// scriptedSampler presses Right for the first half of a repeating window and
// releases for the second half, giving the mirror script something to move
// on so a run produces visibly nonzero state instead of parking at the seed
// position.
type scriptedSampler struct{ n int }

func (s *scriptedSampler) Sample() sim.InputMask {
	s.n++
	if (s.n/30)%2 == 0 {
		return sim.Right
	}
	return 0
}

func seedState() sim.State {
	return sim.State{
		P1: sim.Fighter{X: fixedpoint.FromFloat(-1), HP: 100},
		P2: sim.Fighter{X: fixedpoint.FromFloat(1), HP: 100},
	}
}

func newVMFactory() func() vm.VM {
	return func() vm.VM { return vm.NewRefVM() }
}

// drainer is satisfied by both internal/transport/pipe.Endpoint and
// internal/transport/ws.Conn, so the pump loop below works unmodified
// whether the session runs over a loopback pipe or a real socket.
type drainer interface {
	Drain() [][]byte
}

func drainPump(d drainer, handle func([]byte) error) error {
	for _, frame := range d.Drain() {
		if err := handle(frame); err != nil {
			return err
		}
	}
	return nil
}

// runLoopback drives two in-process Orchestrators against each other over
// internal/transport/pipe, for local testing without any network.
func runLoopback(ctx context.Context, out *stdoutLog, cfg config.Config, eventLogger *diagnostics.EventLogger, duration time.Duration, script string) error {
	assetsA, assetsB := pipe.NewPair()
	liveA, liveB := pipe.NewPair()

	viewerA := &loggingViewer{log: out, label: "p1", every: 60}
	viewerB := &loggingViewer{log: out, label: "p2", every: 60}
	newVM := newVMFactory()
	seed := seedState()

	p1, err := orchestrator.New(cfg, rollback.Player1, assetsA, liveA, eventLogger, viewerA, &scriptedSampler{}, newVM, seed)
	if err != nil {
		return fmt.Errorf("clashhost: construct p1: %w", err)
	}
	p2, err := orchestrator.New(cfg, rollback.Player2, assetsB, liveB, eventLogger, viewerB, &scriptedSampler{}, newVM, seed)
	if err != nil {
		return fmt.Errorf("clashhost: construct p2: %w", err)
	}

	meshBytes := []byte("clashhost soak-test placeholder mesh bytes")
	if err := p1.AnnounceLocalAsset("fighter-mesh", "mesh", "fighter.glb",
		map[string][]byte{"model/gltf-binary": meshBytes}, nil); err != nil {
		return fmt.Errorf("clashhost: announce asset: %w", err)
	}
	out.Printf("p1 announced local asset bundle (%s)", humanize.Bytes(uint64(len(meshBytes))))

	// p2 never loads its own bundle locally in this harness; it only ever
	// receives p1's, so it must wait for that manifest before it can arm.
	if err := p1.PushScript("soak", []byte(script)); err != nil {
		return fmt.Errorf("clashhost: push script: %w", err)
	}

	// Pump both directions of the assets channel until p2 has assembled the
	// manifest p1 announced (need-list -> chunk delivery is a round trip)
	// and observed the pushed script, arming it without a real network.
	for i := 0; i < 8 && p2.Phase() != orchestrator.Armed; i++ {
		if err := drainPump(assetsA, p1.HandleAssetFrame); err != nil {
			return fmt.Errorf("clashhost: p1 asset pump: %w", err)
		}
		if err := drainPump(assetsB, p2.HandleAssetFrame); err != nil {
			return fmt.Errorf("clashhost: p2 asset pump: %w", err)
		}
	}
	if p2.Phase() != orchestrator.Armed {
		return fmt.Errorf("clashhost: p2 failed to arm (phase=%v)", p2.Phase())
	}
	out.Printf("both peers armed, starting game")

	if err := p1.StartGame(); err != nil {
		return fmt.Errorf("clashhost: start game: %w", err)
	}
	// p2 observes GameStart over the same assets pipe it just armed on.
	if err := drainPump(assetsB, p2.HandleAssetFrame); err != nil {
		return fmt.Errorf("clashhost: p2 asset pump (gamestart): %w", err)
	}
	if p1.Phase() != orchestrator.Running || p2.Phase() != orchestrator.Running {
		return fmt.Errorf("clashhost: peers failed to reach Running (p1=%v p2=%v)", p1.Phase(), p2.Phase())
	}

	return runLoop(ctx, out, duration, eventLogger, func(dt float64) error {
		if err := drainPump(assetsA, p1.HandleAssetFrame); err != nil {
			return err
		}
		if err := drainPump(assetsB, p2.HandleAssetFrame); err != nil {
			return err
		}
		if err := drainPump(liveA, p1.HandleLiveFrame); err != nil {
			return err
		}
		if err := drainPump(liveB, p2.HandleLiveFrame); err != nil {
			return err
		}
		if err := p1.Tick(dt); err != nil {
			return fmt.Errorf("clashhost: p1 tick: %w", err)
		}
		if err := p2.Tick(dt); err != nil {
			return fmt.Errorf("clashhost: p2 tick: %w", err)
		}
		return nil
	}, func() {
		out.Printf("session complete: p1.latest=%d p2.latest=%d", p1.Latest(), p2.Latest())
	})
}

// runHost listens for a peer's assets and live WebSocket connections and
// plays Player1, announcing the local asset bundle and pushing the script
// once the peer has joined. Grounded on the teacher's transport/ws.Server:
// an http.Server whose handlers upgrade a connection and hand it off,
// rather than blocking inside the handler itself.
func runHost(ctx context.Context, out *stdoutLog, cfg config.Config, eventLogger *diagnostics.EventLogger, addr string, duration time.Duration, script string) error {
	assetsCh := make(chan *ws.Conn, 1)
	liveCh := make(chan *ws.Conn, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/assets", func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.Accept(w, r)
		if err != nil {
			out.Printf("assets upgrade failed: %v", err)
			return
		}
		select {
		case assetsCh <- c:
		default:
			c.Close()
		}
	})
	mux.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.Accept(w, r)
		if err != nil {
			out.Printf("live upgrade failed: %v", err)
			return
		}
		select {
		case liveCh <- c:
		default:
			c.Close()
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			out.Printf("http server error: %v", err)
		}
	}()
	defer srv.Close()
	out.Printf("listening on %s for a peer (ws://%s/assets, ws://%s/live)", addr, addr, addr)

	assetsConn, err := waitForConn(ctx, assetsCh, "assets")
	if err != nil {
		return err
	}
	liveConn, err := waitForConn(ctx, liveCh, "live")
	if err != nil {
		return err
	}
	out.Printf("peer connected")

	viewer := &loggingViewer{log: out, label: "p1", every: 60}
	p1, err := orchestrator.New(cfg, rollback.Player1, assetsConn, liveConn, eventLogger, viewer, &scriptedSampler{}, newVMFactory(), seedState())
	if err != nil {
		return fmt.Errorf("clashhost: construct host orchestrator: %w", err)
	}

	meshBytes := []byte("clashhost soak-test placeholder mesh bytes")
	if err := p1.AnnounceLocalAsset("fighter-mesh", "mesh", "fighter.glb",
		map[string][]byte{"model/gltf-binary": meshBytes}, nil); err != nil {
		return fmt.Errorf("clashhost: announce asset: %w", err)
	}
	out.Printf("announced local asset bundle (%s)", humanize.Bytes(uint64(len(meshBytes))))

	if err := p1.PushScript("soak", []byte(script)); err != nil {
		return fmt.Errorf("clashhost: push script: %w", err)
	}
	if err := p1.StartGame(); err != nil {
		return fmt.Errorf("clashhost: start game: %w", err)
	}

	return runLoop(ctx, out, duration, eventLogger, func(dt float64) error {
		if err := drainPump(assetsConn, p1.HandleAssetFrame); err != nil {
			return err
		}
		if err := drainPump(liveConn, p1.HandleLiveFrame); err != nil {
			return err
		}
		return p1.Tick(dt)
	}, func() {
		out.Printf("session complete: p1.latest=%d", p1.Latest())
	})
}

// runClient dials a running host's assets and live WebSocket endpoints and
// plays Player2; it never loads its own asset bundle, only ever receiving
// the host's manifest and pushed script over the wire.
func runClient(ctx context.Context, out *stdoutLog, cfg config.Config, eventLogger *diagnostics.EventLogger, addr string, duration time.Duration) error {
	assetsConn, err := ws.Dial(ctx, "ws://"+addr+"/assets")
	if err != nil {
		return fmt.Errorf("clashhost: dial assets: %w", err)
	}
	liveConn, err := ws.Dial(ctx, "ws://"+addr+"/live")
	if err != nil {
		return fmt.Errorf("clashhost: dial live: %w", err)
	}
	out.Printf("connected to host %s", addr)

	viewer := &loggingViewer{log: out, label: "p2", every: 60}
	p2, err := orchestrator.New(cfg, rollback.Player2, assetsConn, liveConn, eventLogger, viewer, &scriptedSampler{}, newVMFactory(), seedState())
	if err != nil {
		return fmt.Errorf("clashhost: construct client orchestrator: %w", err)
	}

	return runLoop(ctx, out, duration, eventLogger, func(dt float64) error {
		if err := drainPump(assetsConn, p2.HandleAssetFrame); err != nil {
			return err
		}
		if err := drainPump(liveConn, p2.HandleLiveFrame); err != nil {
			return err
		}
		return p2.Tick(dt)
	}, func() {
		out.Printf("session complete: p2.latest=%d", p2.Latest())
	})
}

func waitForConn(ctx context.Context, ch <-chan *ws.Conn, label string) (*ws.Conn, error) {
	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("clashhost: interrupted waiting for %s connection", label)
	case <-time.After(2 * time.Minute):
		return nil, fmt.Errorf("clashhost: timed out waiting for %s connection", label)
	}
}

// runLoop drives step once per millisecond-resolution tick until duration
// has elapsed or ctx is cancelled, then calls summarize.
func runLoop(ctx context.Context, out *stdoutLog, duration time.Duration, eventLogger *diagnostics.EventLogger, step func(dt float64) error, summarize func()) error {
	deadline := time.Now().Add(duration)
	last := time.Now()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			out.Printf("interrupted, shutting down early")
			return finish(eventLogger)
		default:
		}

		now := time.Now()
		dt := now.Sub(last).Seconds()
		last = now

		if err := step(dt); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	summarize()
	return finish(eventLogger)
}

func finish(l *diagnostics.EventLogger) error {
	if l == nil {
		return nil
	}
	return l.Close()
}

var (
	_ assets.Transport = (*ws.Conn)(nil)
	_ live.Transport   = (*ws.Conn)(nil)
)
