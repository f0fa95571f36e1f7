// Package fixedpoint implements the signed 16.16 fixed-point arithmetic that
// all simulation quantities use, so that both peers compute byte-identical
// state from the same input stream regardless of host float semantics.
package fixedpoint

// Q16 is a signed 16.16 fixed-point value stored in a two's-complement int32.
type Q16 int32

// Shift is the number of fractional bits.
const Shift = 16

// WalkSpeed is 0.25 world-units per tick, the spec's WALK_SPEED constant.
const WalkSpeed Q16 = 16384

// FromFloat truncates n * 65536 into a Q16 value.
func FromFloat(n float64) Q16 {
	return Q16(int32(n * 65536))
}

// ToFloat returns the real-number value of q.
func (q Q16) ToFloat() float64 {
	return float64(q) / 65536
}

// Add is plain 32-bit integer addition.
func (q Q16) Add(o Q16) Q16 {
	return q + o
}

// Sub is plain 32-bit integer subtraction.
func (q Q16) Sub(o Q16) Q16 {
	return q - o
}

// Mul computes (a*b) >> 16 with arithmetic right shift, using a 64-bit
// intermediate to avoid overflow of the product.
func (q Q16) Mul(o Q16) Q16 {
	return Q16(int64(q) * int64(o) >> Shift)
}
