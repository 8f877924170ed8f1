package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
)

const empty = `[0,0,0,0],[0,0,0,0],[0,0,0,0]`

// mergeTrace starts with two 2s in the top row, merges them left and spawns a
// 2 in the top-right corner.
const mergeTrace = `[
	{"prev": null, "next": [[2,2,0,0],` + empty + `]},
	{"prev": [[2,2,0,0],` + empty + `], "next": [[4,0,0,2],` + empty + `], "direction": "left", "score_delta": 4}
]`

func TestAnalyzeTrace(t *testing.T) {
	reports, err := analyzeTrace(strings.NewReader(mergeTrace))
	if err != nil {
		t.Fatalf("analyzeTrace: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}

	first := reports[0]
	if !first.Initial {
		t.Error("Expected first step to be initial")
	}
	if first.Ops[reconcile.KindSpawn] != 2 {
		t.Errorf("Expected 2 spawns on the initial step, got %d", first.Ops[reconcile.KindSpawn])
	}

	second := reports[1]
	if second.Ops[reconcile.KindMerge] != 1 {
		t.Errorf("Expected 1 merge, got %d", second.Ops[reconcile.KindMerge])
	}
	if second.Ops[reconcile.KindSpawn] != 1 {
		t.Errorf("Expected 1 spawn, got %d", second.Ops[reconcile.KindSpawn])
	}
	if second.Merged != 4 {
		t.Errorf("Expected merged score 4, got %d", second.Merged)
	}
	for _, rep := range reports {
		if !rep.OK() {
			t.Errorf("Step %d failed: problems=%v stale=%v conserved=%v", rep.Index, rep.Problems, rep.Stale, rep.Conserved())
		}
	}
}

func TestAnalyzeTraceScoreMismatch(t *testing.T) {
	trace := strings.Replace(mergeTrace, `"score_delta": 4`, `"score_delta": 8`, 1)

	reports, err := analyzeTrace(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("analyzeTrace: %v", err)
	}
	if reports[1].Conserved() {
		t.Error("Expected score mismatch to be reported")
	}
	if reports[1].OK() {
		t.Error("Expected step to fail")
	}
}

func TestAnalyzeTraceStalePrev(t *testing.T) {
	trace := `[
		{"prev": null, "next": [[2,0,0,0],` + empty + `]},
		{"prev": [[0,0,0,4],` + empty + `], "next": [[4,0,0,0],` + empty + `], "direction": "left"}
	]`

	reports, err := analyzeTrace(strings.NewReader(trace))
	if err != nil {
		t.Fatalf("analyzeTrace: %v", err)
	}
	if !reports[1].Stale {
		t.Error("Expected second step to be flagged stale")
	}
}

func TestAnalyzeTraceInvalid(t *testing.T) {
	tests := []struct {
		name  string
		trace string
	}{
		{"not json", `{`},
		{"bad direction", `[{"prev": null, "next": [[2,0,0,0],` + empty + `], "direction": "sideways"}]`},
		{"bad board", `[{"prev": null, "next": [[3,0,0,0],` + empty + `]}]`},
		{"short board", `[{"prev": null, "next": [[2,0,0,0]]}]`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := analyzeTrace(strings.NewReader(test.trace)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, []byte(mergeTrace), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	ok, err := analyzeFile(&out, path)
	if err != nil {
		t.Fatalf("analyzeFile: %v", err)
	}
	if !ok {
		t.Errorf("Expected trace to pass, output:\n%s", out.String())
	}

	for _, want := range []string{
		"Step 0 (initial): 0 moves, 0 merges, 2 spawns, 0 removes",
		"Step 1 (move): 0 moves, 1 merges, 1 spawns, 0 removes",
		"Totals: 2 steps",
		"✅",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestAnalyzeFileMissing(t *testing.T) {
	if _, err := analyzeFile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
