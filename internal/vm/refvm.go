package vm

import (
	"bytes"
	"fmt"
)

// Input mask bits, duplicated from the sim package's wire contract so this
// package has no dependency on it (the VM contract is defined in terms of a
// raw uint16, per §4.5).
const (
	bitLeft  = 0x04
	bitRight = 0x08
)

// RefVM is a deterministic reference VM used by tests and as the built-in
// fallback script. Its "program" is selected by the first line of the
// loaded source rather than a real bytecode format, since the script VM's
// internals are explicitly out of scope (§1) — this exists only to exercise
// the adapter contract end to end.
//
// Supported programs:
//   - "idle"   — issues move(0) every tick, never switches animation.
//   - "mirror" — maps Right/Left to move(1)/move(-1), else move(0); this is
//     the §8 scenario-2 "mirror walk" script.
//
// RefVM carries persistent per-instance scope (TickCount) across calls,
// matching the "Rhai Scope" pattern §9 warns about: a rollback that clones
// and reloads gets a fresh scope, exactly as Clone + LoadSource must.
type RefVM struct {
	program   string
	lastErr   error
	TickCount uint64
}

// NewRefVM returns an unloaded VM instance.
func NewRefVM() *RefVM {
	return &RefVM{}
}

func (r *RefVM) LoadSource(src []byte) bool {
	line := src
	if i := bytes.IndexByte(src, '\n'); i >= 0 {
		line = src[:i]
	}
	prog := string(bytes.TrimSpace(line))
	switch prog {
	case "idle", "mirror":
		r.program = prog
		r.lastErr = nil
		r.TickCount = 0
		return true
	default:
		r.lastErr = fmt.Errorf("refvm: unknown program %q", prog)
		return false
	}
}

func (r *RefVM) TakeLastError() error {
	err := r.lastErr
	r.lastErr = nil
	return err
}

func (r *RefVM) Tick(frame uint32, inputMask uint16) []Command {
	r.TickCount++
	switch r.program {
	case "idle":
		return []Command{{Kind: Move, DX: 0}}
	case "mirror":
		switch {
		case inputMask&bitRight != 0:
			return []Command{{Kind: Move, DX: 1}}
		case inputMask&bitLeft != 0:
			return []Command{{Kind: Move, DX: -1}}
		default:
			return []Command{{Kind: Move, DX: 0}}
		}
	default:
		// No program loaded: empty result triggers the simulation step's
		// direct input-to-velocity fallback.
		return nil
	}
}

func (r *RefVM) Clone() VM {
	return &RefVM{program: r.program}
}
