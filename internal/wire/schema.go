package wire

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaFS embeds schemas/manifest.schema.json and schemas/atlas.schema.json
// into the binary so decode-path validation never depends on a runtime
// filesystem layout (grounded on the teacher's protocol/schemas_test.go use
// of jsonschema/v5, promoted here from test-only to the production decode
// path per §4.3).
//
//go:embed schemas/manifest.schema.json schemas/atlas.schema.json
var schemaFS embed.FS

var (
	manifestSchema = mustCompileEmbedded("schemas/manifest.schema.json")
	atlasSchema    = mustCompileEmbedded("schemas/atlas.schema.json")
)

func mustCompileEmbedded(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("wire: read embedded schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("wire: add embedded schema %s: %v", name, err))
	}
	schema, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("wire: compile embedded schema %s: %v", name, err))
	}
	return schema
}

// CompileManifestSchema returns the embedded, already-compiled manifest
// schema. Exported so callers (e.g. tooling validating an asset bundle
// offline) can run the same check DecodeManifest runs on the wire.
func CompileManifestSchema() *jsonschema.Schema { return manifestSchema }

// CompileAtlasSchema returns the embedded, already-compiled atlas schema.
func CompileAtlasSchema() *jsonschema.Schema { return atlasSchema }

// validateAgainstSchema unmarshals raw into an untyped value and runs it
// through schema, the shape jsonschema/v5 requires (it validates
// interface{} trees, not Go structs).
func validateAgainstSchema(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("wire: invalid json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("wire: schema validation: %w", err)
	}
	return nil
}
