package wire

import "encoding/json"

// AtlasAnim describes one named animation range within a sprite atlas (§6).
type AtlasAnim struct {
	From int  `json:"from"`
	To   int  `json:"to"`
	FPS  int  `json:"fps"`
	Loop bool `json:"loop"`
}

// Atlas is the JSON payload of a sprite manifest's atlas chunk.
type Atlas struct {
	CellWidth  int                  `json:"cellWidth"`
	CellHeight int                  `json:"cellHeight"`
	Anims      map[string]AtlasAnim `json:"anims"`
}

// DecodeAtlas parses a sprite atlas JSON payload, checked against
// schemas/atlas.schema.json before unmarshaling (§4.3, §6).
func DecodeAtlas(payload []byte) (Atlas, error) {
	if err := validateAgainstSchema(atlasSchema, payload); err != nil {
		return Atlas{}, err
	}
	var a Atlas
	if err := json.Unmarshal(payload, &a); err != nil {
		return Atlas{}, err
	}
	return a, nil
}
