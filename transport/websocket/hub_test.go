package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testFrame(t *testing.T) animation.Frame {
	t.Helper()
	id := tile.NewID()
	table, err := tile.NewTable(tile.Tile{ID: id, Cell: board.Cell{Row: 0, Col: 0}, Value: 2})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	var prev board.Board
	prev.Set(board.Cell{Row: 0, Col: 3}, 2)
	state := board.GameState{Board: table.Board(), Score: 0}
	return animation.Frame{
		Seq:       7,
		Direction: board.Left,
		Prev:      &prev,
		State:     state,
		Ops:       []reconcile.Op{reconcile.Move(id, board.Cell{Row: 0, Col: 3}, board.Cell{Row: 0, Col: 0}, 2)},
		Table:     table,
	}
}

func TestNewHub(t *testing.T) {
	hub := testHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := testHub()

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, sendBuffer),
	}
	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if len(hub.sessions["test-session"]) != 1 {
		t.Errorf("Expected 1 client in session, got %d", len(hub.sessions["test-session"]))
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := testHub()

	client := &Client{
		hub:       hub,
		sessionID: "test-session",
		send:      make(chan []byte, sendBuffer),
	}
	hub.registerClient(client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed")
	}

	// A second unregister is a no-op.
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := testHub()
	sessionID := "multi-client-session"

	client1 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, sendBuffer)}
	client2 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, sendBuffer)}
	other := &Client{hub: hub, sessionID: "other", send: make(chan []byte, sendBuffer)}

	hub.registerClient(client1)
	hub.registerClient(client2)
	hub.registerClient(other)

	hub.broadcastMessage(&Message{SessionID: sessionID, Event: EventCommit})

	for _, c := range []*Client{client1, client2} {
		select {
		case data := <-c.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("Failed to unmarshal message: %v", err)
			}
			if msg.Event != EventCommit {
				t.Errorf("Expected event %q, got %q", EventCommit, msg.Event)
			}
		default:
			t.Error("client in session did not receive message")
		}
	}

	select {
	case <-other.send:
		t.Error("client in another session received message")
	default:
	}

	hub.unregisterClient(client1)
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := testHub()

	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: EventSlide})

	if _, exists := hub.sessions["slow"]; exists {
		t.Error("slow client should have been dropped")
	}
}

func TestFrameMessage(t *testing.T) {
	f := testFrame(t)
	msg := FrameMessage("abc", EventSlide, f)

	if msg.SessionID != "abc" || msg.Event != EventSlide {
		t.Errorf("unexpected header %+v", msg)
	}
	if msg.Seq != 7 {
		t.Errorf("Expected seq 7, got %d", msg.Seq)
	}
	if msg.Direction != "left" {
		t.Errorf("Expected direction left, got %q", msg.Direction)
	}
	if msg.Initial {
		t.Error("frame with a previous board is not initial")
	}
	if len(msg.Ops) != 1 || msg.Ops[0].Kind != reconcile.KindMove {
		t.Errorf("unexpected ops %v", msg.Ops)
	}
	if len(msg.Tiles) != 1 || msg.Tiles[0].Value != 2 {
		t.Errorf("unexpected tiles %v", msg.Tiles)
	}

	f.Prev = nil
	msg = FrameMessage("abc", EventCommit, f)
	if !msg.Initial || msg.Direction != "" {
		t.Errorf("initial frame should carry no direction, got %+v", msg)
	}
}

func TestPublishAfterStop(t *testing.T) {
	hub := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Neither call may block once the hub is gone.
	for i := 0; i < sendBuffer+1; i++ {
		hub.Publish(&Message{SessionID: "gone", Event: EventCommit})
	}
	if n := hub.ClientCount("gone"); n != 0 {
		t.Errorf("Expected 0 clients, got %d", n)
	}
}

func dialSession(t *testing.T, hub *Hub, sessionID string, initial *Message) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"), initial)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients in %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	return msg
}

func TestWebSocketLifecycle(t *testing.T) {
	hub := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialSession(t, hub, "ws-test", nil)
	waitForClients(t, hub, "ws-test", 1)

	conn.Close()
	waitForClients(t, hub, "ws-test", 0)
}

func TestWebSocketInitialSnapshot(t *testing.T) {
	hub := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	state := board.GameState{Score: 12}
	initial := SnapshotMessage("snap", &session.Snapshot{State: &state})
	conn := dialSession(t, hub, "snap", initial)

	msg := readMessage(t, conn)
	if msg.Event != EventSnapshot {
		t.Errorf("Expected event %q, got %q", EventSnapshot, msg.Event)
	}
	if msg.State == nil || msg.State.Score != 12 {
		t.Errorf("snapshot state not received: %+v", msg.State)
	}
}

func TestViewStreamsCycle(t *testing.T) {
	hub := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialSession(t, hub, "view", nil)
	waitForClients(t, hub, "view", 1)

	view := hub.View("view")
	f := testFrame(t)
	view.Slide(f)
	view.Settle(f)
	view.Commit(f)
	view.Notify(session.Notice{ID: 1, Message: session.MoveFailedMessage})
	view.Dismiss(session.Notice{ID: 1})

	want := []string{EventSlide, EventSettle, EventCommit, EventNotice, EventDismiss}
	for _, event := range want {
		msg := readMessage(t, conn)
		if msg.Event != event {
			t.Fatalf("Expected event %q, got %q", event, msg.Event)
		}
		if msg.SessionID != "view" {
			t.Errorf("Expected session view, got %q", msg.SessionID)
		}
		if event == EventNotice && (msg.Notice == nil || msg.Notice.Message != session.MoveFailedMessage) {
			t.Errorf("notice not transmitted: %+v", msg.Notice)
		}
		if event == EventCommit && (msg.State == nil || len(msg.Tiles) != 1) {
			t.Errorf("commit should carry state and tiles: %+v", msg)
		}
	}
}
