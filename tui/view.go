package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/session"
)

type slideMsg struct{ frame animation.Frame }

type settleMsg struct{ frame animation.Frame }

type commitMsg struct{ frame animation.Frame }

type noticeMsg struct{ notice session.Notice }

type dismissMsg struct{ notice session.Notice }

// View forwards a controller's render calls into a Bubble Tea program in
// order. Render calls never block: messages queue until the program reads
// them, including any sent before Attach.
type View struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	once    sync.Once
}

var _ session.View = (*View)(nil)

// NewView returns a detached View.
func NewView() *View {
	return &View{wake: make(chan struct{}, 1)}
}

// Attach starts delivering messages to p until done is closed.
func (v *View) Attach(p *tea.Program, done <-chan struct{}) {
	v.attach(p.Send, done)
}

func (v *View) attach(send func(tea.Msg), done <-chan struct{}) {
	v.once.Do(func() {
		go v.pump(send, done)
	})
}

func (v *View) pump(send func(tea.Msg), done <-chan struct{}) {
	for {
		v.mu.Lock()
		batch := v.pending
		v.pending = nil
		v.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}

		select {
		case <-v.wake:
		case <-done:
			return
		}
	}
}

func (v *View) deliver(msg tea.Msg) {
	v.mu.Lock()
	v.pending = append(v.pending, msg)
	v.mu.Unlock()

	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// Slide implements animation.Renderer.
func (v *View) Slide(f animation.Frame) { v.deliver(slideMsg{f}) }

// Settle implements animation.Renderer.
func (v *View) Settle(f animation.Frame) { v.deliver(settleMsg{f}) }

// Commit implements animation.Renderer.
func (v *View) Commit(f animation.Frame) { v.deliver(commitMsg{f}) }

// Notify implements session.View.
func (v *View) Notify(n session.Notice) { v.deliver(noticeMsg{n}) }

// Dismiss implements session.View.
func (v *View) Dismiss(n session.Notice) { v.deliver(dismissMsg{n}) }
