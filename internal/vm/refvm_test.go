package vm

import "testing"

func TestLoadSourceRejectsUnknownProgram(t *testing.T) {
	r := NewRefVM()
	if r.LoadSource([]byte("nonsense")) {
		t.Fatalf("expected LoadSource to fail for unknown program")
	}
	if r.TakeLastError() == nil {
		t.Fatalf("expected TakeLastError to report the compile failure")
	}
}

func TestIdleProgramNeverMoves(t *testing.T) {
	r := NewRefVM()
	if !r.LoadSource([]byte("idle")) {
		t.Fatalf("LoadSource(idle) failed")
	}
	for f := uint32(0); f < 10; f++ {
		cmds := r.Tick(f, 0xFFFF)
		if len(cmds) != 1 || cmds[0].Kind != Move || cmds[0].DX != 0 {
			t.Fatalf("frame %d: idle program issued %+v", f, cmds)
		}
	}
}

func TestMirrorProgramMapsDirections(t *testing.T) {
	r := NewRefVM()
	r.LoadSource([]byte("mirror"))

	if cmds := r.Tick(1, bitRight); cmds[0].DX != 1 {
		t.Fatalf("Right => DX %d, want 1", cmds[0].DX)
	}
	if cmds := r.Tick(2, bitLeft); cmds[0].DX != -1 {
		t.Fatalf("Left => DX %d, want -1", cmds[0].DX)
	}
	if cmds := r.Tick(3, 0); cmds[0].DX != 0 {
		t.Fatalf("no input => DX %d, want 0", cmds[0].DX)
	}
}

func TestCloneIsIndependentFreshScope(t *testing.T) {
	r := NewRefVM()
	r.LoadSource([]byte("mirror"))
	r.Tick(1, bitRight)
	r.Tick(2, bitRight)

	c := r.Clone().(*RefVM)
	c.LoadSource([]byte("mirror"))

	if c.TickCount != 0 {
		t.Fatalf("cloned VM scope not reset: TickCount = %d", c.TickCount)
	}
	c.Tick(1, bitLeft)
	if r.TickCount == c.TickCount {
		t.Fatalf("clone shares scope with original")
	}
}
