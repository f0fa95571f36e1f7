package sim

import "clashlink/internal/fixedpoint"

// State is the full per-frame simulation snapshot (§3). It is logically
// immutable once committed to rollback history: Step returns a new State
// rather than mutating its receiver in place.
type State struct {
	Frame uint16
	P1    Fighter
	P2    Fighter
}

// Fingerprint computes the §4.1 state hash over
// (frame, p1.x, p1.vx, p1.hp, p1.anim, p2.x, p2.vx, p2.hp, p2.anim).
func (s State) Fingerprint() uint32 {
	h := fixedpoint.NewFingerprint()
	h.WriteWord(uint32(s.Frame))
	h.WriteWord(uint32(s.P1.X))
	h.WriteWord(uint32(s.P1.VX))
	h.WriteWord(uint32(s.P1.HP))
	h.WriteWord(uint32(s.P1.Anim))
	h.WriteWord(uint32(s.P2.X))
	h.WriteWord(uint32(s.P2.VX))
	h.WriteWord(uint32(s.P2.HP))
	h.WriteWord(uint32(s.P2.Anim))
	return h.Sum()
}
