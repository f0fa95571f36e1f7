// Package wire implements the binary/JSON wire codecs for every message kind
// exchanged over the assets and live channels (§6). Every encode/decode
// function is a pure function: decoders validate only enough to read their
// fields and never panic on a malformed frame (§4.3, §7 "Malformed frame").
package wire

import "fmt"

// Opcode is the first byte of every frame, identifying its kind.
type Opcode byte

const (
	OpManifest   Opcode = 0x01
	OpNeedChunks Opcode = 0x02
	OpChunk      Opcode = 0x03
	OpScriptPush Opcode = 0x20
	OpGameStart  Opcode = 0x22
	OpInput      Opcode = 0x10
	OpStateHash  Opcode = 0x11
)

// PeekOpcode splits data into its opcode and the remaining payload bytes,
// mirroring the "peek the type before decoding the full frame" shape used
// throughout this wire format.
func PeekOpcode(data []byte) (Opcode, []byte, error) {
	if len(data) < 1 {
		return 0, nil, fmt.Errorf("wire: empty frame")
	}
	return Opcode(data[0]), data[1:], nil
}
