package assets

import (
	"testing"

	"clashlink/internal/cas"
	"clashlink/internal/wire"
)

func TestReceiverManifestAlreadySatisfied(t *testing.T) {
	store := cas.New()
	blob := []byte("mesh bytes")
	h := cas.HashOf(blob)
	store.Put(h, blob)

	r := NewReceiver(store)
	m := wire.Manifest{ID: "m1", Entry: "main.glb", Chunks: []wire.ManifestChunk{{Hash: h, Size: len(blob), Mime: "model/gltf-binary"}}}

	needed, ready := r.HandleManifest(m)
	if !ready {
		t.Fatalf("expected ready=true, already have all chunks")
	}
	if len(needed) != 0 {
		t.Fatalf("expected no needed chunks, got %v", needed)
	}
	if r.State() != Ready {
		t.Fatalf("state = %v, want Ready", r.State())
	}
}

func TestReceiverAssemblesAfterChunks(t *testing.T) {
	store := cas.New()
	r := NewReceiver(store)

	blobA, blobB := []byte("chunk a"), []byte("chunk b")
	ha, hb := cas.HashOf(blobA), cas.HashOf(blobB)
	m := wire.Manifest{
		ID: "m2", Entry: "main.glb",
		Chunks: []wire.ManifestChunk{{Hash: ha, Size: len(blobA)}, {Hash: hb, Size: len(blobB)}},
	}

	needed, ready := r.HandleManifest(m)
	if ready {
		t.Fatalf("expected ready=false, no chunks stored yet")
	}
	if len(needed) != 2 {
		t.Fatalf("needed = %v, want 2 hashes", needed)
	}
	if r.State() != Awaiting {
		t.Fatalf("state = %v, want Awaiting", r.State())
	}

	ready, err := r.HandleChunk(wire.Chunk{Hash: ha, Payload: compress(blobA)})
	if err != nil {
		t.Fatalf("HandleChunk a: %v", err)
	}
	if ready {
		t.Fatalf("expected not ready after only one of two chunks")
	}

	ready, err = r.HandleChunk(wire.Chunk{Hash: hb, Payload: compress(blobB)})
	if err != nil {
		t.Fatalf("HandleChunk b: %v", err)
	}
	if !ready {
		t.Fatalf("expected ready after both chunks delivered")
	}
	if r.State() != Ready {
		t.Fatalf("state = %v, want Ready", r.State())
	}

	got, ok := store.Get(ha)
	if !ok || string(got) != string(blobA) {
		t.Fatalf("store did not retain decompressed chunk a")
	}
}

func TestReceiverSpriteManifestRequiresAtlas(t *testing.T) {
	store := cas.New()
	r := NewReceiver(store)

	frameBlob, atlasBlob := []byte("frame strip"), []byte(`{"cellWidth":32,"cellHeight":32,"anims":{}}`)
	hFrame, hAtlas := cas.HashOf(frameBlob), cas.HashOf(atlasBlob)

	m := wire.Manifest{
		ID: "sprite1", Type: "sprite", Entry: "strip.png",
		Chunks: []wire.ManifestChunk{{Hash: hFrame, Size: len(frameBlob)}, {Hash: hAtlas, Size: len(atlasBlob)}},
		Meta:   map[string]string{"atlas": hAtlas},
	}

	needed, ready := r.HandleManifest(m)
	if ready {
		t.Fatalf("expected not ready before any chunk arrives")
	}
	if len(needed) != 2 {
		t.Fatalf("needed = %v, want 2", needed)
	}

	if ready, _ := r.HandleChunk(wire.Chunk{Hash: hFrame, Payload: compress(frameBlob)}); ready {
		t.Fatalf("expected not ready without atlas chunk")
	}
	ready, err := r.HandleChunk(wire.Chunk{Hash: hAtlas, Payload: compress(atlasBlob)})
	if err != nil {
		t.Fatalf("HandleChunk atlas: %v", err)
	}
	if !ready {
		t.Fatalf("expected ready once atlas chunk lands")
	}
}

func TestReceiverUnreferencedChunkStoredButIgnored(t *testing.T) {
	store := cas.New()
	r := NewReceiver(store)

	wanted := []byte("wanted")
	hWanted := cas.HashOf(wanted)
	m := wire.Manifest{ID: "m3", Entry: "e", Chunks: []wire.ManifestChunk{{Hash: hWanted, Size: len(wanted)}}}
	r.HandleManifest(m)

	stray := []byte("nobody asked for this")
	hStray := cas.HashOf(stray)
	ready, err := r.HandleChunk(wire.Chunk{Hash: hStray, Payload: compress(stray)})
	if err != nil {
		t.Fatalf("HandleChunk stray: %v", err)
	}
	if ready {
		t.Fatalf("a chunk outside the pending manifest must not trigger ready")
	}
	if !store.Has(hStray) {
		t.Fatalf("expected stray chunk to still be stored in the CAS")
	}
	if r.State() != Awaiting {
		t.Fatalf("state = %v, want still Awaiting", r.State())
	}
}
