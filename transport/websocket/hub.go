package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/merge2048/game/animation"
	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 256
)

// Event names carried by Message.Event.
const (
	EventSnapshot = "snapshot"
	EventSlide    = "slide"
	EventSettle   = "settle"
	EventCommit   = "commit"
	EventNotice   = "notice"
	EventDismiss  = "dismiss"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Message is one render event pushed to the clients of a session.
type Message struct {
	SessionID string           `json:"session_id"`
	Event     string           `json:"event"`
	Seq       uint64           `json:"seq,omitempty"`
	Direction string           `json:"direction,omitempty"`
	Initial   bool             `json:"initial,omitempty"`
	State     *board.GameState `json:"state,omitempty"`
	Ops       []reconcile.Op   `json:"ops,omitempty"`
	Tiles     []tile.Tile      `json:"tiles,omitempty"`
	Notice    *session.Notice  `json:"notice,omitempty"`
}

// FrameMessage converts an animation frame into a Message.
func FrameMessage(sessionID, event string, f animation.Frame) *Message {
	state := f.State
	msg := &Message{
		SessionID: sessionID,
		Event:     event,
		Seq:       f.Seq,
		Initial:   f.Initial(),
		State:     &state,
		Ops:       f.Ops,
		Tiles:     f.Table.Tiles(),
	}
	if !f.Initial() {
		msg.Direction = f.Direction.String()
	}
	return msg
}

// SnapshotMessage converts a committed snapshot into a Message.
func SnapshotMessage(sessionID string, snap *session.Snapshot) *Message {
	return &Message{
		SessionID: sessionID,
		Event:     EventSnapshot,
		State:     snap.State,
		Tiles:     snap.Tiles,
		Notice:    snap.Notice,
	}
}

// Client represents a WebSocket client connection.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub maintains active clients grouped by session and fans out messages.
// The sessions map is only touched by the goroutine running Run.
type Hub struct {
	sessions   map[string]map[*Client]bool
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket"),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					close(client.send)
				}
			}
			h.sessions = make(map[string]map[*Client]bool)
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastMessage(msg)

		case req := <-h.count:
			req.reply <- len(h.sessions[req.sessionID])
		}
	}
}

// Publish queues msg for every client of msg.SessionID. It never blocks the
// caller; messages are dropped once the hub has stopped.
func (h *Hub) Publish(msg *Message) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("broadcast queue full, dropping message",
			"session", msg.SessionID, "event", msg.Event)
	}
}

// ClientCount reports how many clients are connected to a session.
func (h *Hub) ClientCount(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and attaches the connection to sessionID.
// If initial is non-nil it is the first message the client receives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, initial *Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
	}

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
	h.logger.Info("client connected", "session", client.sessionID,
		"clients", len(h.sessions[client.sessionID]))
}

func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}
	h.logger.Info("client disconnected", "session", client.sessionID,
		"clients", len(clients))
}

func (h *Hub) broadcastMessage(msg *Message) {
	clients := h.sessions[msg.SessionID]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err, "event", msg.Event)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send buffer is full, assume it's disconnected
			delete(clients, client)
			close(client.send)
		}
	}
	if len(clients) == 0 {
		delete(h.sessions, msg.SessionID)
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// readPump drains the connection so control frames are processed. Clients
// drive the game over HTTP; anything they send here is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "session", c.sessionID, "error", err)
			}
			return
		}
	}
}

// writePump sends one websocket frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
