// Command analyze replays recorded board transitions through the
// reconciliation engine and prints a human-readable report: op counts per
// step, reconciliation issues, and whether each step conserves score,
// explains the next board and keeps tile identities stable.
//
// A trace is a JSON array of steps:
//
//	[{"prev": null, "next": [[2,0,0,0],...]},
//	 {"prev": [[2,0,0,0],...], "next": [[0,0,0,2],...], "direction": "right", "score_delta": 0}]
//
// A null prev starts a new game.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// Step is one recorded transition.
type Step struct {
	Prev       *board.Board    `json:"prev"`
	Next       board.Board     `json:"next"`
	Direction  board.Direction `json:"direction"`
	ScoreDelta *int            `json:"score_delta,omitempty"`
}

// StepReport is the analysis of one step.
type StepReport struct {
	Index    int
	Initial  bool
	Ops      map[reconcile.Kind]int
	Issues   []reconcile.Issue
	Fallback bool
	// Merged is the sum of merge values; compared with ScoreDelta when known.
	Merged     int
	ScoreDelta *int
	// Stale is set when prev is not the board committed by the previous step.
	Stale    bool
	Problems []string
}

// Conserved reports whether merged values match the recorded score delta.
func (s StepReport) Conserved() bool {
	return s.ScoreDelta == nil || s.Fallback || s.Merged == *s.ScoreDelta
}

// OK reports whether the step passed every check.
func (s StepReport) OK() bool {
	return len(s.Problems) == 0 && s.Conserved() && !s.Stale
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: analyze TRACE.json [TRACE.json...]")
		os.Exit(2)
	}

	failed := false
	for _, path := range os.Args[1:] {
		fmt.Printf("\n=== Analyzing %s ===\n", path)
		ok, err := analyzeFile(os.Stdout, path)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		if err != nil || !ok {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func analyzeFile(w io.Writer, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("reading trace: %w", err)
	}
	defer f.Close()

	reports, err := analyzeTrace(f)
	if err != nil {
		return false, err
	}
	return printReports(w, reports), nil
}

// analyzeTrace decodes a trace and replays it against a fresh tracker.
func analyzeTrace(r io.Reader) ([]StepReport, error) {
	var steps []Step
	if err := json.NewDecoder(r).Decode(&steps); err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}

	tracker := tile.NewTracker()
	reports := make([]StepReport, 0, len(steps))
	for i, step := range steps {
		reports = append(reports, analyzeStep(i, step, tracker))
	}
	return reports, nil
}

func analyzeStep(i int, step Step, tracker *tile.Tracker) StepReport {
	rep := StepReport{
		Index:      i,
		Initial:    step.Prev == nil,
		Ops:        make(map[reconcile.Kind]int),
		ScoreDelta: step.ScoreDelta,
	}

	if step.Prev == nil {
		tracker.Reset()
	} else if tracker.Commits() > 0 && !tracker.Table().Describes(*step.Prev) {
		rep.Stale = true
	}

	before := tracker.Table()
	res := reconcile.Reconcile(step.Prev, step.Next, step.Direction, before)

	for _, op := range res.Ops {
		rep.Ops[op.Kind]++
	}
	rep.Issues = res.Issues
	rep.Fallback = res.Fallback
	rep.Merged = reconcile.MergedScore(res.Ops)

	if err := reconcile.Verify(step.Next, res); err != nil {
		rep.Problems = append(rep.Problems, err.Error())
	}
	if !rep.Initial && !res.Fallback {
		rep.Problems = append(rep.Problems, identityProblems(before, res)...)
	}

	tracker.Commit(res.Table)
	return rep
}

// identityProblems checks that every surviving tile kept the identity it had
// before the step and that only spawns introduce new identities.
func identityProblems(before tile.Table, res reconcile.Result) []string {
	var problems []string
	known := make(map[tile.ID]bool)
	for _, t := range before.Tiles() {
		known[t.ID] = true
	}

	for _, op := range res.Ops {
		switch op.Kind {
		case reconcile.KindMove, reconcile.KindMerge:
			prev, ok := before.Lookup(op.From)
			if ok && prev.ID != op.ID {
				problems = append(problems, fmt.Sprintf("%v: tile at %v was %v", op, op.From, prev.ID))
			}
		case reconcile.KindSpawn:
			if known[op.ID] {
				problems = append(problems, fmt.Sprintf("%v: spawn reuses identity %v", op, op.ID))
			}
		}
	}
	return problems
}

func printReports(w io.Writer, reports []StepReport) bool {
	ok := true
	totals := make(map[reconcile.Kind]int)
	issues := 0

	for _, rep := range reports {
		for k, n := range rep.Ops {
			totals[k] += n
		}
		issues += len(rep.Issues)

		label := "initial"
		if !rep.Initial {
			label = "move"
		}
		fmt.Fprintf(w, "Step %d (%s): %d moves, %d merges, %d spawns, %d removes\n",
			rep.Index, label,
			rep.Ops[reconcile.KindMove], rep.Ops[reconcile.KindMerge],
			rep.Ops[reconcile.KindSpawn], rep.Ops[reconcile.KindRemove])

		if rep.Stale {
			fmt.Fprintf(w, "   ⚠️  prev does not match the board committed by the previous step\n")
		}
		if rep.Fallback {
			fmt.Fprintf(w, "   ⚠️  inconsistent transition, rebuilt from spawns\n")
		}
		for _, is := range rep.Issues {
			fmt.Fprintf(w, "   issue: %v\n", is)
		}
		if !rep.Conserved() {
			fmt.Fprintf(w, "   ⚠️  merged %d but score changed by %d\n", rep.Merged, *rep.ScoreDelta)
		}
		for _, p := range rep.Problems {
			fmt.Fprintf(w, "   ⚠️  %s\n", p)
		}
		if !rep.OK() {
			ok = false
		}
	}

	fmt.Fprintf(w, "Totals: %d steps, %d moves, %d merges, %d spawns, %d removes, %d issues\n",
		len(reports), totals[reconcile.KindMove], totals[reconcile.KindMerge],
		totals[reconcile.KindSpawn], totals[reconcile.KindRemove], issues)
	if ok {
		fmt.Fprintf(w, "✅ Every step explains its board and keeps identities stable\n")
	} else {
		fmt.Fprintf(w, "⚠️  Some steps failed their checks\n")
	}
	return ok
}
