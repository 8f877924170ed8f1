package websocket

import (
	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/session"
)

// View publishes a session's render events to its websocket clients.
type View struct {
	hub       *Hub
	sessionID string
}

var _ session.View = (*View)(nil)

// View returns the session.View for sessionID.
func (h *Hub) View(sessionID string) *View {
	return &View{hub: h, sessionID: sessionID}
}

func (v *View) Slide(f animation.Frame) {
	v.hub.Publish(FrameMessage(v.sessionID, EventSlide, f))
}

func (v *View) Settle(f animation.Frame) {
	v.hub.Publish(FrameMessage(v.sessionID, EventSettle, f))
}

func (v *View) Commit(f animation.Frame) {
	v.hub.Publish(FrameMessage(v.sessionID, EventCommit, f))
}

func (v *View) Notify(n session.Notice) {
	v.hub.Publish(&Message{SessionID: v.sessionID, Event: EventNotice, Notice: &n})
}

func (v *View) Dismiss(n session.Notice) {
	v.hub.Publish(&Message{SessionID: v.sessionID, Event: EventDismiss, Notice: &n})
}
