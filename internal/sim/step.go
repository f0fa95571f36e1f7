package sim

import (
	"clashlink/internal/fixedpoint"
	"clashlink/internal/vm"
)

// Step advances s by one frame, applying vm1's and vm2's commands (or the
// direct-input fallback) to P1 then P2 in that strict, observable order
// (§4.6). It returns the new state; s itself is never mutated.
func Step(s State, i1, i2 InputMask, vm1, vm2 vm.VM) State {
	next := s
	nextFrame := uint32(s.Frame) + 1

	next.P1 = stepFighter(s.P1, nextFrame, i1, vm1)
	next.P2 = stepFighter(s.P2, nextFrame, i2, vm2)
	next.Frame = uint16((uint32(s.Frame) + 1) & 0xFFFF)
	return next
}

func stepFighter(f Fighter, nextFrame uint32, input InputMask, m vm.VM) Fighter {
	cmds := m.Tick(nextFrame, uint16(input))
	if len(cmds) == 0 {
		cmds = fallbackCommands(input)
	}

	for _, c := range cmds {
		switch c.Kind {
		case vm.Move:
			switch {
			case c.DX >= 1:
				f.VX = fixedpoint.WalkSpeed
			case c.DX <= -1:
				f.VX = -fixedpoint.WalkSpeed
			default:
				f.VX = 0
			}
		case vm.Anim:
			f.Anim = fixedpoint.HashString32(c.Name)
		}
	}

	f.X = f.X.Add(f.VX)
	f.HP = clampHP(f.HP)
	return f
}

// fallbackCommands implements the §4.6 step-4 direct input-to-velocity
// mapping used when a VM tick returns no commands (compile error, or a
// script that deliberately issues none).
func fallbackCommands(input InputMask) []vm.Command {
	switch {
	case input&Left != 0:
		return []vm.Command{{Kind: vm.Move, DX: -1}}
	case input&Right != 0:
		return []vm.Command{{Kind: vm.Move, DX: 1}}
	default:
		return []vm.Command{{Kind: vm.Move, DX: 0}}
	}
}
