package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/reconcile"
	"github.com/wricardo/mcp-training/merge2048/game/service"
	"github.com/wricardo/mcp-training/merge2048/game/session"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"merge2048",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`merge2048 - MCP Interface

This is a thin client that proxies all requests to the session server.
Each session mirrors a 2048 game held by the rules engine and tracks the
identity of every tile across moves.

AVAILABLE TOOLS:
- create_session: Create a session and start (or resume) a game
- list_sessions: List all active sessions
- new_game: Start a new game in a session
- move: Slide the tiles up/down/left/right - requires intent explanation
- board_state: Board, score and identified tiles of a session
- delete_session: Stop a session

Moves are rejected while the previous move is still animating; retry after
the reported transition commits.`),
	)

	c.registerTools()
}

func sessionIDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new session and present its first game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to use (optional, generated when empty)",
				},
				"resume": map[string]interface{}{
					"type":        "boolean",
					"description": "Show the game the rules engine already holds instead of starting a new one",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Stop and remove a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDSchema()},
			Required:   []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "new_game",
		Description: "Start a new game, abandoning any move in flight",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDSchema()},
			Required:   []string{"session_id"},
		},
	}, c.handleNewGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Slide every tile in one direction and report which tiles moved, merged or spawned",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDSchema(),
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Direction to slide",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Why this move",
				},
			},
			Required: []string{"session_id", "direction", "intent"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "board_state",
		Description: "Get the committed board, score and tile identities of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDSchema()},
			Required:   []string{"session_id"},
		},
	}, c.handleBoardState)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func sessionPath(args map[string]interface{}, suffix string) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("session_id is required")
	}
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := service.CreateSessionRequest{}
	body.ID, _ = args["session_id"].(string)
	body.Resume, _ = args["resume"].(bool)

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\n\n%s", info.ID, formatSessionInfo(&info))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		score := "no game"
		if s.GameState != nil {
			score = fmt.Sprintf("score %d", s.GameState.Score)
		}
		fmt.Fprintf(&result, "- %s (%s, Created: %s)\n", s.ID, score, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message string `json:"message"`
	}
	if err := c.apiCall(ctx, "DELETE", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/new-game")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", path, nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("✓ New game started\n\n" + formatMoveResult(&result)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	path, err := sessionPath(args, "/move")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	direction, _ := args["direction"].(string)

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	_, _ = args["intent"].(string)

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", path, map[string]string{"direction": direction}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBoardState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := sessionPath(arguments(request), "/tiles")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap session.Snapshot
	if err := c.apiCall(ctx, "GET", path, nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString(formatGameState(snap.State))
	if len(snap.Tiles) > 0 {
		result.WriteString("\n\nTiles:\n")
		result.WriteString(formatTiles(snap.Tiles))
	}
	if snap.Busy {
		result.WriteString("\nA transition is in progress.")
	}
	if snap.Notice != nil {
		fmt.Fprintf(&result, "\nNotice: %s", snap.Notice.Message)
	}
	return mcp.NewToolResultText(result.String()), nil
}

// Formatting

func formatSessionInfo(info *service.SessionInfo) string {
	out := formatGameState(info.GameState)
	if info.Notice != nil {
		out += "\nNotice: " + info.Notice.Message
	}
	return out
}

func formatGameState(state *board.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Score: %d | Max tile: %d\n\n", state.Score, state.Board.MaxTile())

	for r := 0; r < board.Size; r++ {
		for c := 0; c < board.Size; c++ {
			v := state.Board[r][c]
			if v == 0 {
				result.WriteString("    .")
			} else {
				fmt.Fprintf(&result, "%5d", v)
			}
		}
		result.WriteString("\n")
	}

	if banner := state.Banner(); banner != "" {
		result.WriteString("\n" + banner)
	}

	return strings.TrimRight(result.String(), "\n")
}

func formatTiles(tiles []tile.Tile) string {
	var result strings.Builder
	for _, t := range tiles {
		fmt.Fprintf(&result, "- %s at %s = %d\n", t.ID, t.Cell, t.Value)
	}
	return result.String()
}

func formatOp(op reconcile.Op) string {
	switch op.Kind {
	case reconcile.KindMove:
		if op.From == op.To {
			return ""
		}
		return fmt.Sprintf("%s %d %s→%s", op.ID, op.Value, op.From, op.To)
	case reconcile.KindMerge:
		return fmt.Sprintf("%s+%s → %d at %s", op.ID, op.Consumed, op.Value, op.To)
	case reconcile.KindSpawn:
		return fmt.Sprintf("new %s %d at %s", op.ID, op.Value, op.To)
	case reconcile.KindRemove:
		return fmt.Sprintf("dropped %s from %s", op.ID, op.From)
	}
	return op.String()
}

func formatMoveResult(result *service.MoveResult) string {
	var response strings.Builder
	if result.Success {
		response.WriteString("✓ Transition committed\n")
	} else {
		response.WriteString("✗ Transition failed\n")
	}

	if result.Transition != nil && !result.Transition.Initial {
		fmt.Fprintf(&response, "Direction: %s | Score +%d\n", result.Transition.Direction, result.ScoreDelta)
	}
	counts := result.OpCounts
	fmt.Fprintf(&response, "Moves: %d, Merges: %d, Spawns: %d\n", counts.Moves, counts.Merges, counts.Spawns)

	if result.Transition != nil {
		var lines []string
		for _, op := range result.Transition.Ops {
			if line := formatOp(op); line != "" {
				lines = append(lines, "- "+line)
			}
		}
		if len(lines) > 0 {
			response.WriteString(strings.Join(lines, "\n") + "\n")
		}
		if len(result.Transition.Issues) > 0 {
			fmt.Fprintf(&response, "Inconsistencies: %d\n", len(result.Transition.Issues))
		}
	}

	response.WriteString("\n" + formatGameState(result.GameState))
	return response.String()
}
