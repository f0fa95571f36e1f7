package assets

import "github.com/klauspost/compress/zstd"

// chunk payloads travel zstd-compressed on the wire (§4.4's wiring note):
// the sender compresses a CAS blob before framing it as a Chunk, the
// receiver decompresses before CAS.Put. Package-level encoder/decoder
// instances are reused across chunks per klauspost/compress's own guidance
// that constructing one per call is wasteful.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func compress(b []byte) []byte {
	return zstdEncoder.EncodeAll(b, make([]byte, 0, len(b)))
}

func decompress(b []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(b, nil)
}
