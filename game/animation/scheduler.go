package animation

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

var (
	ErrBusy      = errors.New("animation in progress")
	ErrAbandoned = errors.New("animation abandoned")
)

// Default phase durations.
const (
	DefaultSlide  = 120 * time.Millisecond
	DefaultSettle = 160 * time.Millisecond
)

// Timings holds the length of each phase.
type Timings struct {
	Slide  time.Duration
	Settle time.Duration
}

// DefaultTimings returns the standard phase durations.
func DefaultTimings() Timings {
	return Timings{Slide: DefaultSlide, Settle: DefaultSettle}
}

// Total is the length of one full cycle.
func (t Timings) Total() time.Duration {
	return t.Slide + t.Settle
}

// Frame is one reconciled transition ready to animate.
type Frame struct {
	Seq       uint64
	Direction board.Direction
	// Prev is nil for an initial snapshot.
	Prev  *board.Board
	State board.GameState
	Ops   []reconcile.Op
	Table tile.Table
}

// Initial reports whether the frame presents a fresh game.
func (f Frame) Initial() bool {
	return f.Prev == nil
}

// Dispatcher runs fn after d on the goroutine that owns the scheduler.
type Dispatcher interface {
	After(d time.Duration, fn func())
}

// Scheduler sequences frames through the slide and settle phases.
type Scheduler struct {
	dispatch Dispatcher
	renderer Renderer
	tracker  *tile.Tracker
	timings  Timings
	logger   *slog.Logger

	busy       atomic.Bool
	generation uint64
	seq        uint64
}

// NewScheduler creates a scheduler that owns tracker for writes.
func NewScheduler(dispatch Dispatcher, renderer Renderer, tracker *tile.Tracker, timings Timings, logger *slog.Logger) *Scheduler {
	if renderer == nil {
		renderer = Renderers(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		dispatch: dispatch,
		renderer: renderer,
		tracker:  tracker,
		timings:  timings,
		logger:   logger.With("component", "animation"),
	}
}

// IsBusy reports whether a frame is in flight.
func (s *Scheduler) IsBusy() bool {
	return s.busy.Load()
}

// Tracker returns the tracker the scheduler commits to.
func (s *Scheduler) Tracker() *tile.Tracker {
	return s.tracker
}

// Timings returns the phase durations.
func (s *Scheduler) Timings() Timings {
	return s.timings
}

// Schedule starts animating f. The returned channel receives nil once both
// phases have run and the table is committed, or ErrAbandoned if the cycle was
// abandoned first. It is buffered and closed after the single send.
func (s *Scheduler) Schedule(f Frame) (<-chan error, error) {
	if s.busy.Load() {
		return nil, ErrBusy
	}
	s.busy.Store(true)
	s.seq++
	f.Seq = s.seq
	gen := s.generation
	done := make(chan error, 1)

	resolve := func(err error) {
		done <- err
		close(done)
	}

	s.logger.Debug("slide phase", "seq", f.Seq, "ops", len(f.Ops), "direction", f.Direction)
	s.renderer.Slide(f)

	s.dispatch.After(s.timings.Slide, func() {
		if gen != s.generation {
			resolve(ErrAbandoned)
			return
		}
		s.logger.Debug("settle phase", "seq", f.Seq)
		s.renderer.Settle(f)

		s.dispatch.After(s.timings.Settle, func() {
			if gen != s.generation {
				resolve(ErrAbandoned)
				return
			}
			s.tracker.Commit(f.Table)
			s.busy.Store(false)
			s.logger.Debug("frame committed", "seq", f.Seq, "tiles", f.Table.Len())
			s.renderer.Commit(f)
			resolve(nil)
		})
	})

	return done, nil
}

// Abandon drops the in-flight frame, if any, and makes the scheduler idle.
// The tracker keeps its last committed table.
func (s *Scheduler) Abandon() {
	s.generation++
	s.busy.Store(false)
}

// Reset abandons the in-flight frame and clears the tracker.
func (s *Scheduler) Reset() {
	s.Abandon()
	s.tracker.Reset()
}
