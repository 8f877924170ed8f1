package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/observability"
)

var testTimings = animation.Timings{Slide: 5 * time.Millisecond, Settle: 5 * time.Millisecond}

// fakeEngine is an in-memory rules engine. Spawns are deterministic: a 2 on
// the last empty cell in row-major order.
type fakeEngine struct {
	mu       sync.Mutex
	start    board.Board
	board    board.Board
	score    int
	moveErr  error
	newErr   error
	moveGate chan struct{}
	override *board.GameState
	fresh    *board.GameState
	moves    int
	parked   int
}

func newFakeEngine(start board.Board) *fakeEngine {
	return &fakeEngine{start: start}
}

func (f *fakeEngine) NewGame(ctx context.Context) (board.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return board.GameState{}, f.newErr
	}
	if f.fresh != nil {
		return *f.fresh, nil
	}
	f.board = f.start
	f.score = 0
	return board.GameState{Board: f.board, Score: f.score}, nil
}

func (f *fakeEngine) State(ctx context.Context) (board.GameState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return board.GameState{Board: f.board, Score: f.score}, nil
}

func (f *fakeEngine) Move(ctx context.Context, dir board.Direction) (board.GameState, error) {
	f.mu.Lock()
	gate := f.moveGate
	if gate != nil {
		f.parked++
	}
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return board.GameState{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves++
	if f.moveErr != nil {
		return board.GameState{}, f.moveErr
	}
	if f.override != nil {
		return *f.override, nil
	}

	moved, delta := slide(f.board, dir)
	if moved != f.board {
		moved = spawnLast(moved)
	}
	f.board = moved
	f.score += delta
	return board.GameState{Board: f.board, Score: f.score}, nil
}

func (f *fakeEngine) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moveGate = gate
}

// waiting reports how many moves have blocked on a gate so far.
func (f *fakeEngine) waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parked
}

func slide(b board.Board, dir board.Direction) (board.Board, int) {
	var out board.Board
	score := 0
	for line := 0; line < board.Size; line++ {
		cells := board.Line(dir, line)
		var vals []int
		for _, c := range cells {
			if v := b.At(c); v != 0 {
				vals = append(vals, v)
			}
		}
		k := 0
		for i := 0; i < len(vals); i++ {
			v := vals[i]
			if i+1 < len(vals) && vals[i+1] == v {
				v *= 2
				score += v
				i++
			}
			out.Set(cells[k], v)
			k++
		}
	}
	return out, score
}

func spawnLast(b board.Board) board.Board {
	for r := board.Size - 1; r >= 0; r-- {
		for c := board.Size - 1; c >= 0; c-- {
			if b[r][c] == 0 {
				b[r][c] = 2
				return b
			}
		}
	}
	return b
}

// recordingView records renderer and notice calls from the loop goroutine.
type recordingView struct {
	mu        sync.Mutex
	events    []string
	notices   []Notice
	dismissed []Notice
}

func (v *recordingView) Slide(f animation.Frame)  { v.record("slide") }
func (v *recordingView) Settle(f animation.Frame) { v.record("settle") }
func (v *recordingView) Commit(f animation.Frame) { v.record("commit") }

func (v *recordingView) Notify(n Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, n)
}

func (v *recordingView) Dismiss(n Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dismissed = append(v.dismissed, n)
}

func (v *recordingView) record(e string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func (v *recordingView) Events() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.events...)
}

func (v *recordingView) Notices() ([]Notice, []Notice) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Notice(nil), v.notices...), append([]Notice(nil), v.dismissed...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	ctrl    *Controller
	engine  *fakeEngine
	view    *recordingView
	metrics *observability.Metrics
}

func newHarness(t *testing.T, start board.Board) *harness {
	t.Helper()
	return newHarnessTimings(t, start, testTimings)
}

func newHarnessTimings(t *testing.T, start board.Board, timings animation.Timings) *harness {
	t.Helper()
	engine := newFakeEngine(start)
	view := &recordingView{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ctrl := NewController("test", engine, Options{
		View:      view,
		Timings:   timings,
		NoticeTTL: 100 * time.Millisecond,
		Metrics:   metrics,
		Logger:    discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-ctrl.Done()
	})

	return &harness{ctrl: ctrl, engine: engine, view: view, metrics: metrics}
}
