// Package rules is the HTTP client for the remote rules engine.
//
// Endpoints:
//   - GET  /api/new-game  start a new game
//   - POST /api/move      {"direction": "up|down|left|right"}
//   - GET  /api/state     current game
//
// Every response is decoded with board.DecodeGameState, so a malformed
// snapshot surfaces as an error wrapping board.ErrInvalidSnapshot and never
// reaches the client core.
package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/merge2048/game/board"
)

// maxBody bounds how much of a response is read.
const maxBody = 1 << 20

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("rules engine returned an error")

// Client talks to one rules engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the engine address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NewGame starts a new game.
func (c *Client) NewGame(ctx context.Context) (board.GameState, error) {
	return c.apiCall(ctx, http.MethodGet, "/api/new-game", nil)
}

// Move applies dir.
func (c *Client) Move(ctx context.Context, dir board.Direction) (board.GameState, error) {
	if !dir.Valid() {
		return board.GameState{}, fmt.Errorf("%w %d", board.ErrInvalidDirection, int(dir))
	}
	body := map[string]string{"direction": dir.String()}
	return c.apiCall(ctx, http.MethodPost, "/api/move", body)
}

// State fetches the current game.
func (c *Client) State(ctx context.Context) (board.GameState, error) {
	return c.apiCall(ctx, http.MethodGet, "/api/state", nil)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}) (board.GameState, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return board.GameState{}, err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return board.GameState{}, err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return board.GameState{}, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return board.GameState{}, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		return board.GameState{}, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, errorMessage(data))
	}

	state, err := board.DecodeGameState(data)
	if err != nil {
		return board.GameState{}, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return state, nil
}

// errorMessage extracts {"error": "..."} bodies and falls back to plain text.
func errorMessage(data []byte) string {
	var errResp map[string]interface{}
	if json.Unmarshal(data, &errResp) == nil {
		if msg, ok := errResp["error"].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}
