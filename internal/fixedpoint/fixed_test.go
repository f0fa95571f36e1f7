package fixedpoint

import "testing"

func TestFromFloatWalkSpeed(t *testing.T) {
	if got := FromFloat(0.25); got != WalkSpeed {
		t.Fatalf("FromFloat(0.25) = %d, want %d", got, WalkSpeed)
	}
}

func TestMulShift(t *testing.T) {
	half := FromFloat(0.5)
	two := FromFloat(2)
	if got := half.Mul(two); got != FromFloat(1) {
		t.Fatalf("0.5 * 2 = %v, want 1", got.ToFloat())
	}
}

func TestAddSub(t *testing.T) {
	a := FromFloat(-1)
	b := WalkSpeed
	if got := a.Add(b).ToFloat(); got != -0.75 {
		t.Fatalf("-1 + 0.25 = %v, want -0.75", got)
	}
	if got := a.Sub(b).ToFloat(); got != -1.25 {
		t.Fatalf("-1 - 0.25 = %v, want -1.25", got)
	}
}

func TestMirrorWalkSixtyFrames(t *testing.T) {
	x := FromFloat(-1)
	for i := 0; i < 60; i++ {
		x = x.Add(WalkSpeed)
	}
	if int32(x) != 917504 {
		t.Fatalf("x after 60 frames of +WALK = %d, want 917504", int32(x))
	}
}
