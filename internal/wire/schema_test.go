package wire

import (
	"encoding/json"
	"testing"
)

func TestManifestSchemaValidatesSample(t *testing.T) {
	schema := CompileManifestSchema()

	var v any
	raw := []byte(`{
		"id": "bundle-1",
		"type": "sprite",
		"entry": "fighter",
		"chunks": [
			{"hash": "sha256:` + hex64('a') + `", "size": 10, "mime": "image/png"},
			{"hash": "sha256:` + hex64('b') + `", "size": 20, "mime": "application/json"}
		],
		"meta": {"atlas": "sha256:` + hex64('b') + `"}
	}`)
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		t.Fatalf("schema rejected a valid manifest: %v", err)
	}
}

func TestManifestSchemaRejectsBadHash(t *testing.T) {
	schema := CompileManifestSchema()
	var v any
	raw := []byte(`{"id":"b","entry":"e","chunks":[{"hash":"not-a-hash","size":1,"mime":"x"}]}`)
	json.Unmarshal(raw, &v)
	if err := schema.Validate(v); err == nil {
		t.Fatalf("expected schema to reject a malformed hash")
	}
}

func TestAtlasSchemaValidatesSample(t *testing.T) {
	schema := CompileAtlasSchema()
	var v any
	raw := []byte(`{
		"cellWidth": 32, "cellHeight": 32,
		"anims": {"idle": {"from": 0, "to": 3, "fps": 6, "loop": true}}
	}`)
	json.Unmarshal(raw, &v)
	if err := schema.Validate(v); err != nil {
		t.Fatalf("schema rejected a valid atlas: %v", err)
	}
}

func TestDecodeManifestRejectsSchemaInvalidPayload(t *testing.T) {
	raw := []byte(`{"id":"b","entry":"e","chunks":[{"hash":"not-a-hash","size":1,"mime":"x"}]}`)
	if _, err := DecodeManifest(raw); err == nil {
		t.Fatalf("expected DecodeManifest to reject a schema-invalid payload")
	}
}

func TestDecodeAtlasRejectsSchemaInvalidPayload(t *testing.T) {
	raw := []byte(`{"cellWidth": 32}`)
	if _, err := DecodeAtlas(raw); err == nil {
		t.Fatalf("expected DecodeAtlas to reject a payload missing required fields")
	}
}
