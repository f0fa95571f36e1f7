package wire

import (
	"encoding/binary"
	"fmt"
)

// NeedChunks lists chunk hashes the receiver is missing (§6, opcode 0x02).
type NeedChunks struct {
	Hashes []string
}

// Chunk carries one content-addressed blob (§6, opcode 0x03). The current
// spec always sends a chunk whole, so Offset is 0.
type Chunk struct {
	Hash    string
	Offset  uint32
	Payload []byte
}

// ScriptPush carries a named script source over the assets channel (§6,
// opcode 0x20).
type ScriptPush struct {
	Name string
	Body []byte
}

// Input carries one player's per-frame input mask plus an ack cursor over
// the live channel (§6, opcode 0x10).
type Input struct {
	Frame uint16
	Mask  uint16
	Ack   uint16
}

// StateHash carries a periodic state fingerprint for desync detection (§6,
// opcode 0x11).
type StateHash struct {
	Frame uint16
	Hash  uint32
}

// EncodeNeedChunks serializes hashes as opcode 0x02: u16 count, then
// per-hash (u8 len, len bytes).
func EncodeNeedChunks(hashes []string) ([]byte, error) {
	if len(hashes) > 0xFFFF {
		return nil, fmt.Errorf("wire: too many hashes (%d)", len(hashes))
	}
	out := []byte{byte(OpNeedChunks), 0, 0}
	binary.LittleEndian.PutUint16(out[1:3], uint16(len(hashes)))
	for _, h := range hashes {
		if len(h) > 0xFF {
			return nil, fmt.Errorf("wire: hash too long (%d bytes): %q", len(h), h)
		}
		out = append(out, byte(len(h)))
		out = append(out, h...)
	}
	return out, nil
}

// DecodeNeedChunks parses a NeedChunks payload (the bytes after the opcode).
func DecodeNeedChunks(payload []byte) (NeedChunks, error) {
	if len(payload) < 2 {
		return NeedChunks{}, fmt.Errorf("wire: need_chunks: short frame")
	}
	count := int(binary.LittleEndian.Uint16(payload[:2]))
	rest := payload[2:]
	hashes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(rest) < 1 {
			return NeedChunks{}, fmt.Errorf("wire: need_chunks: truncated record %d", i)
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return NeedChunks{}, fmt.Errorf("wire: need_chunks: truncated hash %d", i)
		}
		hashes = append(hashes, string(rest[:n]))
		rest = rest[n:]
	}
	return NeedChunks{Hashes: hashes}, nil
}

// EncodeChunk serializes a Chunk as opcode 0x03: u8 hashLen, hashLen bytes,
// u32 offset, then the raw payload.
func EncodeChunk(c Chunk) ([]byte, error) {
	if len(c.Hash) > 0xFF {
		return nil, fmt.Errorf("wire: chunk hash too long (%d bytes)", len(c.Hash))
	}
	out := make([]byte, 0, 1+1+len(c.Hash)+4+len(c.Payload))
	out = append(out, byte(OpChunk))
	out = append(out, byte(len(c.Hash)))
	out = append(out, c.Hash...)
	var off [4]byte
	binary.LittleEndian.PutUint32(off[:], c.Offset)
	out = append(out, off[:]...)
	out = append(out, c.Payload...)
	return out, nil
}

// DecodeChunk parses a Chunk payload.
func DecodeChunk(payload []byte) (Chunk, error) {
	if len(payload) < 1 {
		return Chunk{}, fmt.Errorf("wire: chunk: short frame")
	}
	n := int(payload[0])
	rest := payload[1:]
	if len(rest) < n+4 {
		return Chunk{}, fmt.Errorf("wire: chunk: truncated")
	}
	hash := string(rest[:n])
	rest = rest[n:]
	offset := binary.LittleEndian.Uint32(rest[:4])
	body := rest[4:]
	return Chunk{Hash: hash, Offset: offset, Payload: append([]byte(nil), body...)}, nil
}

// EncodeScriptPush serializes a ScriptPush as opcode 0x20: u8 nameLen,
// nameLen bytes, u32 bodyLen, bodyLen bytes.
func EncodeScriptPush(p ScriptPush) ([]byte, error) {
	if len(p.Name) > 0xFF {
		return nil, fmt.Errorf("wire: script name too long (%d bytes)", len(p.Name))
	}
	out := make([]byte, 0, 1+1+len(p.Name)+4+len(p.Body))
	out = append(out, byte(OpScriptPush))
	out = append(out, byte(len(p.Name)))
	out = append(out, p.Name...)
	var bl [4]byte
	binary.LittleEndian.PutUint32(bl[:], uint32(len(p.Body)))
	out = append(out, bl[:]...)
	out = append(out, p.Body...)
	return out, nil
}

// DecodeScriptPush parses a ScriptPush payload.
func DecodeScriptPush(payload []byte) (ScriptPush, error) {
	if len(payload) < 1 {
		return ScriptPush{}, fmt.Errorf("wire: script_push: short frame")
	}
	n := int(payload[0])
	rest := payload[1:]
	if len(rest) < n+4 {
		return ScriptPush{}, fmt.Errorf("wire: script_push: truncated name/length")
	}
	name := string(rest[:n])
	rest = rest[n:]
	bodyLen := int(binary.LittleEndian.Uint32(rest[:4]))
	rest = rest[4:]
	if len(rest) < bodyLen {
		return ScriptPush{}, fmt.Errorf("wire: script_push: truncated body")
	}
	body := append([]byte(nil), rest[:bodyLen]...)
	return ScriptPush{Name: name, Body: body}, nil
}

// EncodeGameStart serializes the payload-less GameStart control message
// (opcode 0x22).
func EncodeGameStart() []byte {
	return []byte{byte(OpGameStart)}
}

// EncodeInput serializes an Input frame (opcode 0x10): u16 frame, u16 mask,
// u16 ack.
func EncodeInput(in Input) []byte {
	out := make([]byte, 7)
	out[0] = byte(OpInput)
	binary.LittleEndian.PutUint16(out[1:3], in.Frame)
	binary.LittleEndian.PutUint16(out[3:5], in.Mask)
	binary.LittleEndian.PutUint16(out[5:7], in.Ack)
	return out
}

// DecodeInput parses an Input payload.
func DecodeInput(payload []byte) (Input, error) {
	if len(payload) < 6 {
		return Input{}, fmt.Errorf("wire: input: short frame")
	}
	return Input{
		Frame: binary.LittleEndian.Uint16(payload[0:2]),
		Mask:  binary.LittleEndian.Uint16(payload[2:4]),
		Ack:   binary.LittleEndian.Uint16(payload[4:6]),
	}, nil
}

// EncodeStateHash serializes a StateHash frame (opcode 0x11): u16 frame,
// u32 hash.
func EncodeStateHash(sh StateHash) []byte {
	out := make([]byte, 7)
	out[0] = byte(OpStateHash)
	binary.LittleEndian.PutUint16(out[1:3], sh.Frame)
	binary.LittleEndian.PutUint32(out[3:7], sh.Hash)
	return out
}

// DecodeStateHash parses a StateHash payload.
func DecodeStateHash(payload []byte) (StateHash, error) {
	if len(payload) < 6 {
		return StateHash{}, fmt.Errorf("wire: state_hash: short frame")
	}
	return StateHash{
		Frame: binary.LittleEndian.Uint16(payload[0:2]),
		Hash:  binary.LittleEndian.Uint32(payload[2:6]),
	}, nil
}
