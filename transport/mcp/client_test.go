package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/service"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

func sampleState() *board.GameState {
	var b board.Board
	b.Set(board.Cell{Row: 0, Col: 0}, 4)
	b.Set(board.Cell{Row: 0, Col: 3}, 2)
	return &board.GameState{Board: b, Score: 4}
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]string
	if err := client.apiCall(context.Background(), "GET", "/health", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Unexpected response %v", response)
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busy" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{"error": "transition in progress", "code": 409})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	err := client.apiCall(ctx, "GET", "/busy", nil, nil)
	if err == nil || err.Error() != "transition in progress" {
		t.Errorf("Expected server error message, got %v", err)
	}

	err = client.apiCall(ctx, "GET", "/boom", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "API error: 500") {
		t.Errorf("Expected 'API error: 500', got %v", err)
	}

	unreachable := NewClient("http://127.0.0.1:1")
	if err := unreachable.apiCall(ctx, "GET", "/health", nil, nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_createSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		var req service.CreateSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.ID != "abc" || !req.Resume {
			t.Errorf("Unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "abc", GameState: sampleState()})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateSession(context.Background(),
		callTool("create_session", map[string]interface{}{"session_id": "abc", "resume": true}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"Created session: abc", "Score: 4"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_move(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions/abc/move" {
			t.Errorf("Expected POST /api/sessions/abc/move, got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["direction"] != "left" {
			t.Errorf("Expected direction left, got %q", body["direction"])
		}

		ops := []reconcile.Op{
			reconcile.Merge(1, 2, board.Cell{Row: 0, Col: 0}, board.Cell{Row: 0, Col: 1}, board.Cell{Row: 0, Col: 0}, 4),
			reconcile.Spawn(3, board.Cell{Row: 0, Col: 3}, 2),
		}
		state := sampleState()
		json.NewEncoder(w).Encode(service.MoveResult{
			Success:    true,
			GameState:  state,
			ScoreDelta: 4,
			OpCounts:   service.OpCounts{Merges: 1, Spawns: 1},
			Transition: &session.Transition{Direction: board.Left, State: *state, Ops: ops},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleMove(context.Background(), callTool("move", map[string]interface{}{
		"session_id": "abc",
		"direction":  "left",
		"intent":     "merge the twos",
	}))
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"✓ Transition committed", "Direction: left | Score +4", "t1+t2 → 4 at (0,0)", "new t3 2 at (0,3)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_moveRequiresSession(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	result, err := client.handleMove(context.Background(), callTool("move", map[string]interface{}{"direction": "up"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error without session_id")
	}
}

func TestClient_boardState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/abc/tiles" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(session.Snapshot{
			State:  sampleState(),
			Tiles:  []tile.Tile{{ID: 7, Cell: board.Cell{Row: 0, Col: 0}, Value: 4}},
			Busy:   true,
			Notice: &session.Notice{ID: 1, Message: session.MoveFailedMessage},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleBoardState(context.Background(), callTool("board_state", map[string]interface{}{"session_id": "abc"}))
	if err != nil {
		t.Fatalf("board_state failed: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"t7 at (0,0) = 4", "in progress", session.MoveFailedMessage} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got: %s", want, text)
		}
	}
}

func TestClient_toolErrorsAreResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "session not found", "code": 404})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleNewGame(context.Background(), callTool("new_game", map[string]interface{}{"session_id": "gone"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error result")
	}
	if !strings.Contains(resultText(t, result), "session not found") {
		t.Errorf("Unexpected text %q", resultText(t, result))
	}
}

func TestFormatGameState(t *testing.T) {
	if got := formatGameState(nil); got != "No game state available" {
		t.Errorf("Unexpected nil formatting %q", got)
	}

	state := sampleState()
	result := formatGameState(state)
	for _, want := range []string{"Score: 4 | Max tile: 4", "    4    .    .    2"} {
		if !strings.Contains(result, want) {
			t.Errorf("Expected %q in formatted output, got:\n%s", want, result)
		}
	}

	state.GameOver = true
	if !strings.Contains(formatGameState(state), board.GameOverBanner) {
		t.Error("Expected game over banner")
	}
	state.Won = true
	if !strings.Contains(formatGameState(state), board.WonBanner) {
		t.Error("Expected win banner")
	}
}
