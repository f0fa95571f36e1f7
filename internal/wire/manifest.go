package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"clashlink/internal/cas"
)

// ManifestChunk is one chunk entry in a Manifest (§3).
type ManifestChunk struct {
	Hash string `json:"hash"`
	Size int    `json:"size"`
	Mime string `json:"mime"`
}

// Manifest describes an asset bundle by its content-addressed chunks (§3, §6).
type Manifest struct {
	ID     string            `json:"id"`
	Type   string            `json:"type,omitempty"`
	Entry  string            `json:"entry"`
	Chunks []ManifestChunk   `json:"chunks"`
	Meta   map[string]string `json:"meta,omitempty"`
}

// EffectiveType returns Type, defaulting to "mesh" per §3.
func (m Manifest) EffectiveType() string {
	if m.Type == "" {
		return "mesh"
	}
	return m.Type
}

// Validate checks the Manifest invariants from §3: every hash is well
// formed, and for a sprite manifest, meta.atlas names a chunk hash present
// in the chunk list.
func (m Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("wire: manifest missing id")
	}
	if m.Entry == "" {
		return fmt.Errorf("wire: manifest missing entry")
	}
	seen := make(map[string]bool, len(m.Chunks))
	for _, c := range m.Chunks {
		if err := cas.VerifyHash(c.Hash); err != nil {
			return fmt.Errorf("wire: manifest chunk: %w", err)
		}
		seen[c.Hash] = true
	}
	if m.EffectiveType() == "sprite" {
		atlas, ok := m.Meta["atlas"]
		if !ok || !seen[atlas] {
			return fmt.Errorf("wire: sprite manifest meta.atlas %q not in chunk list", atlas)
		}
	}
	return nil
}

// ChunkHashes returns the manifest's chunk hashes in declaration order.
func (m Manifest) ChunkHashes() []string {
	out := make([]string, len(m.Chunks))
	for i, c := range m.Chunks {
		out[i] = c.Hash
	}
	return out
}

// EncodeManifest serializes m as opcode 0x01 followed by its UTF-8 JSON
// payload.
func EncodeManifest(m Manifest) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode manifest: %w", err)
	}
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(OpManifest))
	out = append(out, body...)
	return out, nil
}

// DecodeManifest parses a Manifest JSON payload (the bytes after the opcode
// byte). The payload is checked against schemas/manifest.schema.json before
// it is unmarshaled into a Manifest, so a structurally malformed payload is
// rejected before any of this package's own field-level checks run (§4.3).
func DecodeManifest(payload []byte) (Manifest, error) {
	if err := validateAgainstSchema(manifestSchema, payload); err != nil {
		return Manifest{}, err
	}
	var m Manifest
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("wire: decode manifest: %w", err)
	}
	return m, nil
}
