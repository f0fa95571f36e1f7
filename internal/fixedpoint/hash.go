package fixedpoint

// FNV1a32 is the 32-bit, FNV-1a-like accumulator used for the simulation
// state fingerprint (§4.1). It is not a cryptographic hash and carries no
// such requirement — it exists purely for desync detection between peers.
//
// The incremental "seed, then feed one word at a time" shape mirrors the
// hashWriter pattern the teacher uses for its own state digest, swapped from
// sha256 streaming to this single-multiply-per-word accumulator.
type FNV1a32 uint32

// FingerprintSeed is the FNV-1a offset basis used to start a fresh accumulator.
const FingerprintSeed FNV1a32 = 0x811C9DC5

const fnvPrime32 = 0x01000193

// NewFingerprint returns a fresh accumulator seeded per §4.1.
func NewFingerprint() FNV1a32 {
	return FingerprintSeed
}

// WriteWord folds one little-endian 32-bit word into the accumulator:
// h = (h XOR v) * prime, with unsigned 32-bit wraparound.
func (h *FNV1a32) WriteWord(v uint32) {
	*h = FNV1a32(uint32(*h^FNV1a32(v)) * fnvPrime32)
}

// Sum returns the accumulated 32-bit fingerprint.
func (h FNV1a32) Sum() uint32 {
	return uint32(h)
}

// HashString32 is the VM-facing public string hash used to turn an animation
// name into the int32 stored in Fighter.Anim: a two's-complement 32-bit
// polynomial hash (h = h*31 + c), matching §4.6's hash32(name).
func HashString32(s string) int32 {
	var h int32
	for _, c := range s {
		h = (h << 5) - h + int32(c)
	}
	return h
}
