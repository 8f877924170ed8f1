package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// frameInterval paces slide interpolation, roughly 60 fps.
const frameInterval = 16 * time.Millisecond

// Game is the controller the model drives.
type Game interface {
	Move(ctx context.Context, dir board.Direction) (*session.Transition, error)
	NewGame(ctx context.Context) (*session.Transition, error)
	Resume(ctx context.Context) (*session.Transition, error)
	IsBusy() bool
}

var _ Game = (*session.Controller)(nil)

type phase int

const (
	phaseIdle phase = iota
	phaseSlide
	phaseSettle
)

type frameTickMsg struct {
	seq uint64
	at  time.Time
}

type resultMsg struct {
	action string
	err    error
}

var keyDirections = map[string]board.Direction{
	"up": board.Up, "w": board.Up, "k": board.Up,
	"down": board.Down, "s": board.Down, "j": board.Down,
	"left": board.Left, "a": board.Left, "h": board.Left,
	"right": board.Right, "d": board.Right, "l": board.Right,
}

// Options configures a Model.
type Options struct {
	// Resume shows the game the rules engine already holds at start-up
	// instead of starting a new one.
	Resume  bool
	Timings animation.Timings
	Logger  *slog.Logger
}

// Model is the Bubble Tea model for one session.
type Model struct {
	ctx     context.Context
	game    Game
	resume  bool
	timings animation.Timings
	logger  *slog.Logger

	state *board.GameState
	tiles []tile.Tile

	frame      *animation.Frame
	phase      phase
	slideStart time.Time
	progress   float64

	notice *session.Notice
}

// NewModel creates a model that drives game. ctx bounds every request.
func NewModel(ctx context.Context, game Game, opts Options) Model {
	if opts.Timings == (animation.Timings{}) {
		opts.Timings = animation.DefaultTimings()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return Model{
		ctx:     ctx,
		game:    game,
		resume:  opts.Resume,
		timings: opts.Timings,
		logger:  opts.Logger.With("component", "tui"),
	}
}

func (m Model) Init() tea.Cmd {
	if m.resume {
		return m.request("resume", m.game.Resume)
	}
	return m.request("new game", m.game.NewGame)
}

func (m Model) request(action string, fn func(context.Context) (*session.Transition, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_, err := fn(ctx)
		return resultMsg{action: action, err: err}
	}
}

func (m Model) move(dir board.Direction) tea.Cmd {
	return m.request("move "+dir.String(), func(ctx context.Context) (*session.Transition, error) {
		return m.game.Move(ctx, dir)
	})
}

func tick(seq uint64) tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg{seq: seq, at: t}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case slideMsg:
		f := msg.frame
		m.frame = &f
		m.phase = phaseSlide
		m.slideStart = time.Now()
		m.progress = 0
		return m, tick(f.Seq)

	case frameTickMsg:
		if m.phase != phaseSlide || m.frame == nil || msg.seq != m.frame.Seq {
			return m, nil
		}
		m.progress = float64(msg.at.Sub(m.slideStart)) / float64(m.timings.Slide)
		if m.progress >= 1 {
			m.progress = 1
			return m, nil
		}
		return m, tick(msg.seq)

	case settleMsg:
		f := msg.frame
		m.frame = &f
		m.phase = phaseSettle
		m.progress = 1
		return m, nil

	case commitMsg:
		st := msg.frame.State
		m.state = &st
		m.tiles = msg.frame.Table.Tiles()
		m.frame = nil
		m.phase = phaseIdle
		return m, nil

	case noticeMsg:
		n := msg.notice
		m.notice = &n
		return m, nil

	case dismissMsg:
		if m.notice != nil && m.notice.ID == msg.notice.ID {
			m.notice = nil
		}
		return m, nil

	case resultMsg:
		// Failures reach the player as notices; busy drops and abandoned
		// moves are expected.
		if msg.err != nil && !errors.Is(msg.err, session.ErrBusy) && !errors.Is(msg.err, session.ErrAbandoned) {
			m.logger.Debug("request failed", "action", msg.action, "error", msg.err)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "n", "r":
		return m, m.request("new game", m.game.NewGame)
	}

	dir, ok := keyDirections[key]
	if !ok {
		return m, nil
	}
	if m.game.IsBusy() {
		// The controller would drop it anyway; skip the round trip.
		return m, nil
	}
	return m, m.move(dir)
}

// sprites returns what to draw for the current phase.
func (m Model) sprites() []sprite {
	if m.frame == nil {
		out := make([]sprite, 0, len(m.tiles))
		for _, t := range m.tiles {
			out = append(out, cellSprite(t.Cell, t.Value, false))
		}
		return out
	}

	f := m.frame
	if m.phase == phaseSlide && !f.Initial() {
		var out []sprite
		for _, op := range f.Ops {
			switch op.Kind {
			case reconcile.KindMove:
				out = append(out, lerp(op.From, op.To, m.progress, op.Value))
			case reconcile.KindMerge:
				out = append(out,
					lerp(op.From2, op.To, m.progress, op.Value/2),
					lerp(op.From, op.To, m.progress, op.Value/2))
			case reconcile.KindRemove:
				out = append(out, cellSprite(op.From, op.Value, false))
			}
		}
		return out
	}

	// Settle, or an initial frame: the next board with new and merged
	// tiles marked.
	accent := make(map[board.Cell]bool)
	for _, op := range f.Ops {
		if op.Kind == reconcile.KindMerge || op.Kind == reconcile.KindSpawn {
			accent[op.To] = true
		}
	}
	tiles := f.Table.Tiles()
	out := make([]sprite, 0, len(tiles))
	for _, t := range tiles {
		out = append(out, cellSprite(t.Cell, t.Value, accent[t.Cell]))
	}
	return out
}

func (m Model) View() string {
	var b strings.Builder

	score := 0
	if m.state != nil {
		score = m.state.Score
	}
	if m.frame != nil && m.phase == phaseSettle {
		score = m.frame.State.Score
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("2048"),
		"   ",
		scoreStyle.Render(fmt.Sprintf("Score: %d", score)),
	)
	b.WriteString(header + "\n")
	b.WriteString(boardStyle.Render(drawBoard(m.sprites())) + "\n")

	if m.state != nil && m.frame == nil {
		switch {
		case m.state.Won:
			b.WriteString(wonStyle.Render(m.state.Banner()) + "\n")
		case m.state.GameOver:
			b.WriteString(overStyle.Render(m.state.Banner()) + "\n")
		}
	}
	if m.notice != nil {
		b.WriteString(noticeStyle.Render(m.notice.Message) + "\n")
	}

	b.WriteString(helpStyle.Render("←↑↓→ / wasd / hjkl move · n new game · q quit"))
	return b.String()
}
