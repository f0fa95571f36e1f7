// Command clashreplay verifies determinism over a recorded input trace: it
// feeds the identical sequence of per-frame input masks into two
// independently constructed rollback engines, one playing each player's
// "local" role, and fails loudly the moment their state fingerprints
// diverge at any frame. Grounded on the teacher's cmd/replay/main.go
// (/tmp/teacher_ref/replay_ref.go): load a recorded trace, re-simulate it
// against a fresh engine instance, and report a mismatch tick rather than
// trusting a live session's own bookkeeping.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"clashlink/internal/fixedpoint"
	"clashlink/internal/rollback"
	"clashlink/internal/sim"
	"clashlink/internal/vm"
)

// frameRecord is one line of a trace file: the two players' raw input
// masks for a given frame number.
type frameRecord struct {
	Frame uint16 `json:"frame"`
	P1    uint16 `json:"p1"`
	P2    uint16 `json:"p2"`
}

func main() {
	var (
		tracePath  = flag.String("trace", "", "path to a JSONL input trace (.jsonl or .jsonl.zst)")
		scriptPath = flag.String("script", "", "path to the script source both engines load (defaults to the built-in idle program)")
		historySiz = flag.Int("history", 128, "rollback history ring size (must be >= 64)")
	)
	flag.Parse()

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "missing -trace")
		os.Exit(2)
	}

	records, err := readTrace(*tracePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read trace:", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "trace has no records")
		os.Exit(1)
	}

	src := []byte("idle")
	if *scriptPath != "" {
		src, err = os.ReadFile(*scriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read script:", err)
			os.Exit(1)
		}
	}

	if *historySiz < 64 {
		fmt.Fprintln(os.Stderr, "history must be >= 64")
		os.Exit(2)
	}

	seed := sim.State{
		P1: sim.Fighter{X: fixedpoint.FromFloat(-1), HP: 100},
		P2: sim.Fighter{X: fixedpoint.FromFloat(1), HP: 100},
	}
	newVM := func() vm.VM { return vm.NewRefVM() }

	asP1, err := rollback.New(rollback.Player1, *historySiz, seed, newVM, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "construct p1-local engine:", err)
		os.Exit(1)
	}
	asP2, err := rollback.New(rollback.Player2, *historySiz, seed, newVM, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "construct p2-local engine:", err)
		os.Exit(1)
	}

	checked, mismatchFrame, err := verify(asP1, asP2, records)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	if mismatchFrame != nil {
		fmt.Printf("replay FAILED: fingerprint mismatch at frame=%d (checked %d frames first)\n", *mismatchFrame, checked)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d frames, identical fingerprints from both engines\n", checked)
}

// verify drives both engines through every record, each from its own
// player's point of view, and compares the resulting state fingerprint
// after every frame. It returns as soon as a divergence is found.
func verify(asP1, asP2 *rollback.Engine, records []frameRecord) (checked uint64, mismatchFrame *uint16, err error) {
	for _, rec := range records {
		asP1.SetLocalInput(rec.Frame, rec.P1)
		asP1.SetRemoteInput(rec.Frame, rec.P2)
		asP1.SimulateTo(rec.Frame)

		asP2.SetLocalInput(rec.Frame, rec.P2)
		asP2.SetRemoteInput(rec.Frame, rec.P1)
		asP2.SimulateTo(rec.Frame)

		left := asP1.GetLatest().Fingerprint()
		right := asP2.GetLatest().Fingerprint()
		checked++
		if left != right {
			frame := rec.Frame
			return checked, &frame, nil
		}
	}
	return checked, nil, nil
}

// readTrace loads frameRecord lines from a plain or zstd-compressed JSONL
// file, selected by the ".zst" suffix.
func readTrace(path string) ([]frameRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var out []frameRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("decode trace line: %w", err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
