package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
	"github.com/wricardo/mcp-training/merge2048/observability"
)

var (
	ErrBusy      = errors.New("transition in progress")
	ErrNoGame    = errors.New("no game in progress")
	ErrTransport = errors.New("rules engine request failed")
	ErrAbandoned = errors.New("transition abandoned by a new game")
	ErrClosed    = errors.New("session closed")
)

// Notice messages shown when a request fails.
const (
	MoveFailedMessage    = "Failed to make move. Please try again."
	NewGameFailedMessage = "Failed to start new game. Please try again."
	LoadFailedMessage    = "Failed to load game. Please try again."

	DefaultNoticeTTL = 3 * time.Second
)

// Source is the remote rules engine.
type Source interface {
	NewGame(ctx context.Context) (board.GameState, error)
	Move(ctx context.Context, dir board.Direction) (board.GameState, error)
	State(ctx context.Context) (board.GameState, error)
}

// Notice is a transient message for the player.
type Notice struct {
	ID      uint64        `json:"id"`
	Message string        `json:"message"`
	TTL     time.Duration `json:"ttl"`
}

// View is the rendering surface of one session.
type View interface {
	animation.Renderer
	Notify(n Notice)
	Dismiss(n Notice)
}

// Transition describes one committed cycle.
type Transition struct {
	Direction board.Direction   `json:"direction"`
	Initial   bool              `json:"initial"`
	State     board.GameState   `json:"state"`
	Ops       []reconcile.Op    `json:"ops"`
	Issues    []reconcile.Issue `json:"issues,omitempty"`
	Fallback  bool              `json:"fallback,omitempty"`
	Tiles     []tile.Tile       `json:"tiles"`
}

// Snapshot is a consistent read of a controller's committed state.
type Snapshot struct {
	State  *board.GameState `json:"state"`
	Tiles  []tile.Tile      `json:"tiles"`
	Busy   bool             `json:"busy"`
	Notice *Notice          `json:"notice,omitempty"`
	Last   *Transition      `json:"last_transition,omitempty"`
}

// Options configures a Controller.
type Options struct {
	View      View
	Timings   animation.Timings
	NoticeTTL time.Duration
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

type outcome struct {
	transition *Transition
	err        error
}

// Controller drives one game session. Every mutation happens on the goroutine
// running Run; other goroutines talk to it by posting closures.
type Controller struct {
	id        string
	source    Source
	view      View
	scheduler *animation.Scheduler
	metrics   *observability.Metrics
	logger    *slog.Logger
	noticeTTL time.Duration

	events chan func()
	done   chan struct{}
	runCtx context.Context

	inFlight atomic.Bool

	// Owned by the loop.
	state    *board.GameState
	pending  *Transition
	last     *Transition
	epoch    uint64
	request  uint64
	notice   *Notice
	noticeID uint64
}

// NewController creates a controller. It does nothing until Run is called.
func NewController(id string, source Source, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timings == (animation.Timings{}) {
		opts.Timings = animation.DefaultTimings()
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}

	c := &Controller{
		id:        id,
		source:    source,
		view:      opts.View,
		metrics:   opts.Metrics,
		logger:    logger.With("session", id),
		noticeTTL: opts.NoticeTTL,
		events:    make(chan func(), 64),
		done:      make(chan struct{}),
		runCtx:    context.Background(),
	}
	c.scheduler = animation.NewScheduler(c, c, tile.NewTracker(), opts.Timings, c.logger)
	return c
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.events:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// IsBusy reports whether a request or an animation is in flight.
func (c *Controller) IsBusy() bool {
	return c.inFlight.Load() || c.scheduler.IsBusy()
}

// After implements animation.Dispatcher: fn runs on the loop after d.
func (c *Controller) After(d time.Duration, fn func()) {
	time.AfterFunc(d, func() { c.post(fn) })
}

func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and returns its error.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.events <- func() { errc <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) await(ctx context.Context, reply <-chan outcome) (*Transition, error) {
	select {
	case o := <-reply:
		return o.transition, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// Move asks the rules engine to move in dir and waits for the resulting
// cycle to commit. While busy the move is dropped with ErrBusy and nothing
// changes.
func (c *Controller) Move(ctx context.Context, dir board.Direction) (*Transition, error) {
	if !dir.Valid() {
		return nil, fmt.Errorf("%w %d", board.ErrInvalidDirection, int(dir))
	}

	var reply <-chan outcome
	err := c.call(ctx, func() error {
		var err error
		reply, err = c.startMove(dir)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.await(ctx, reply)
}

// NewGame starts a new game. It always wins: any in-flight request or
// animation is abandoned.
func (c *Controller) NewGame(ctx context.Context) (*Transition, error) {
	return c.restart(ctx, c.source.NewGame, NewGameFailedMessage)
}

// Resume presents the game the rules engine currently holds, as if it had
// just started.
func (c *Controller) Resume(ctx context.Context) (*Transition, error) {
	return c.restart(ctx, c.source.State, LoadFailedMessage)
}

func (c *Controller) restart(ctx context.Context, fetch func(context.Context) (board.GameState, error), failMsg string) (*Transition, error) {
	var reply <-chan outcome
	err := c.call(ctx, func() error {
		reply = c.startRestart(fetch, failMsg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.await(ctx, reply)
}

// OnSnapshot reconciles state against the committed table and animates the
// result. A nil prev presents state as a fresh game. The returned channel
// resolves when the cycle commits.
func (c *Controller) OnSnapshot(ctx context.Context, prev *board.Board, state board.GameState, dir board.Direction) (<-chan error, error) {
	var fut <-chan error
	err := c.call(ctx, func() error {
		if prev == nil {
			c.epoch++
			c.dropRequest()
			c.scheduler.Reset()
		} else if c.IsBusy() {
			c.metrics.ObserveDroppedMove()
			return ErrBusy
		}
		var err error
		fut, _, err = c.present(prev, state, dir, time.Now())
		return err
	})
	return fut, err
}

// Snapshot returns the committed state, table and active notice.
func (c *Controller) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := c.call(ctx, func() error {
		snap = &Snapshot{
			Tiles: c.scheduler.Tracker().Table().Tiles(),
			Busy:  c.IsBusy(),
			Last:  c.last,
		}
		if c.state != nil {
			st := *c.state
			snap.State = &st
		}
		if c.notice != nil {
			n := *c.notice
			snap.Notice = &n
		}
		return nil
	})
	return snap, err
}

func (c *Controller) startMove(dir board.Direction) (<-chan outcome, error) {
	if c.IsBusy() {
		c.metrics.ObserveDroppedMove()
		c.logger.Debug("move dropped while busy", "direction", dir)
		return nil, ErrBusy
	}
	if c.state == nil {
		return nil, ErrNoGame
	}

	prev := c.state.Board
	epoch := c.epoch
	reply := make(chan outcome, 1)
	start := time.Now()
	ctx := c.runCtx

	token := c.beginRequest()
	c.logger.Debug("move requested", "direction", dir)

	go func() {
		state, err := c.source.Move(ctx, dir)
		c.post(func() {
			if epoch != c.epoch {
				c.endRequest(token)
				c.metrics.ObserveTransition(observability.OutcomeAbandoned, start)
				reply <- outcome{err: ErrAbandoned}
				return
			}
			c.finish(token, &prev, dir, state, err, MoveFailedMessage, start, reply)
		})
	}()

	return reply, nil
}

func (c *Controller) startRestart(fetch func(context.Context) (board.GameState, error), failMsg string) <-chan outcome {
	c.epoch++
	epoch := c.epoch
	c.scheduler.Abandon()
	token := c.beginRequest()

	reply := make(chan outcome, 1)
	start := time.Now()
	ctx := c.runCtx
	c.logger.Debug("new game requested")

	go func() {
		state, err := fetch(ctx)
		c.post(func() {
			if epoch != c.epoch {
				c.endRequest(token)
				c.metrics.ObserveTransition(observability.OutcomeAbandoned, start)
				reply <- outcome{err: ErrAbandoned}
				return
			}
			// The old table survives a reply that cannot be presented.
			if err == nil {
				err = state.Validate()
			}
			if err == nil {
				c.scheduler.Reset()
			}
			c.finish(token, nil, board.Up, state, err, failMsg, start, reply)
		})
	}()

	return reply
}

// beginRequest marks a rules engine request in flight and returns its token.
// Starting a request supersedes any earlier one.
func (c *Controller) beginRequest() uint64 {
	c.request++
	c.inFlight.Store(true)
	return c.request
}

// endRequest clears the in-flight flag if token is still the current request.
func (c *Controller) endRequest(token uint64) {
	if token == c.request {
		c.inFlight.Store(false)
	}
}

// dropRequest forgets the current request so its reply cannot clear the flag
// of a later one.
func (c *Controller) dropRequest() {
	c.request++
	c.inFlight.Store(false)
}

// finish handles a rules engine reply on the loop.
func (c *Controller) finish(token uint64, prev *board.Board, dir board.Direction, state board.GameState, err error, failMsg string, start time.Time, reply chan<- outcome) {
	if err != nil {
		c.endRequest(token)
		c.fail(failMsg, err, start)
		if errors.Is(err, board.ErrInvalidSnapshot) {
			reply <- outcome{err: err}
			return
		}
		reply <- outcome{err: fmt.Errorf("%w: %v", ErrTransport, err)}
		return
	}

	fut, tr, err := c.present(prev, state, dir, start)
	c.endRequest(token)
	if err != nil {
		c.fail(failMsg, err, start)
		reply <- outcome{err: err}
		return
	}

	go func() {
		select {
		case ferr := <-fut:
			if ferr != nil {
				reply <- outcome{err: ErrAbandoned}
				return
			}
			reply <- outcome{transition: tr}
		case <-c.done:
			reply <- outcome{err: ErrClosed}
		}
	}()
}

// present validates state, reconciles it and schedules the frame.
func (c *Controller) present(prev *board.Board, state board.GameState, dir board.Direction, start time.Time) (<-chan error, *Transition, error) {
	if err := state.Validate(); err != nil {
		return nil, nil, err
	}

	res := reconcile.Reconcile(prev, state.Board, dir, c.scheduler.Tracker().Table())
	c.metrics.ObserveReconcile(res)
	for _, issue := range res.Issues {
		c.logger.Warn("inconsistent transition", "issue", issue.Kind.String(), "line", issue.Line, "cell", issue.Cell.String(), "value", issue.Value)
	}
	if res.Fallback {
		c.logger.Error("identity claimed twice, redrawing frame", "board", state.Board.String())
	}

	if prev != nil && c.state != nil && !res.Fallback {
		delta := state.Score - c.state.Score
		if merged := reconcile.MergedScore(res.Ops); merged != delta {
			c.metrics.ObserveScoreMismatch()
			c.logger.Warn("merged values disagree with score delta", "merged", merged, "delta", delta)
		}
	}

	if err := reconcile.Verify(state.Board, res); err != nil {
		c.logger.Error("reconciliation does not explain board", "error", err)
	}

	frame := animation.Frame{
		Direction: dir,
		Prev:      prev,
		State:     state,
		Ops:       res.Ops,
		Table:     res.Table,
	}
	fut, err := c.scheduler.Schedule(frame)
	if err != nil {
		return nil, nil, err
	}

	tr := &Transition{
		Direction: dir,
		Initial:   prev == nil,
		State:     state,
		Ops:       res.Ops,
		Issues:    res.Issues,
		Fallback:  res.Fallback,
		Tiles:     res.Table.Tiles(),
	}
	c.pending = tr
	c.logger.Debug("frame scheduled", "direction", dir, "ops", len(res.Ops), "score", state.Score)

	out := make(chan error, 1)
	go func() {
		defer close(out)
		select {
		case ferr := <-fut:
			label := observability.OutcomeCommitted
			if ferr != nil {
				label = observability.OutcomeAbandoned
			}
			c.metrics.ObserveTransition(label, start)
			out <- ferr
		case <-c.done:
			out <- ErrClosed
		}
	}()

	return out, tr, nil
}

// fail reports a failed request without touching board, score or table.
func (c *Controller) fail(msg string, err error, start time.Time) {
	label := observability.OutcomeTransportError
	if errors.Is(err, board.ErrInvalidSnapshot) {
		label = observability.OutcomeInvalidSnapshot
	}
	c.metrics.ObserveTransition(label, start)
	c.logger.Warn("request failed", "error", err)
	c.showNotice(msg)
}

func (c *Controller) showNotice(msg string) {
	c.noticeID++
	n := Notice{ID: c.noticeID, Message: msg, TTL: c.noticeTTL}
	c.notice = &n
	if c.view != nil {
		c.view.Notify(n)
	}

	c.After(c.noticeTTL, func() {
		if c.notice == nil || c.notice.ID != n.ID {
			return
		}
		c.notice = nil
		if c.view != nil {
			c.view.Dismiss(n)
		}
	})
}

// Slide implements animation.Renderer.
func (c *Controller) Slide(f animation.Frame) {
	if c.view != nil {
		c.view.Slide(f)
	}
}

// Settle implements animation.Renderer.
func (c *Controller) Settle(f animation.Frame) {
	if c.view != nil {
		c.view.Settle(f)
	}
}

// Commit implements animation.Renderer. The committed state becomes the base
// for the next move.
func (c *Controller) Commit(f animation.Frame) {
	st := f.State
	c.state = &st
	c.last = c.pending
	c.pending = nil

	switch {
	case st.Won:
		c.logger.Info("game won", "score", st.Score)
	case st.GameOver:
		c.logger.Info("game over", "score", st.Score)
	}

	if c.view != nil {
		c.view.Commit(f)
	}
}
