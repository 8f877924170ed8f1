package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/merge2048/game/board"
)

const stateBody = `{"board":[[2,2,0,0],[0,0,0,0],[0,0,0,0],[0,0,0,4]],"score":8,"gameOver":false,"won":false}`

func TestClient_NewGame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/new-game", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(stateBody))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0)
	state, err := client.NewGame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, state.Score)
	assert.Equal(t, 4, state.Board[3][3])
}

func TestClient_Move(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/move", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "left", body["direction"])

		w.Write([]byte(stateBody))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	state, err := client.Move(context.Background(), board.Left)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Board[0][0])

	_, err = client.Move(context.Background(), board.Direction(9))
	assert.Error(t, err)
}

func TestClient_State(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/state", r.URL.Path)
		w.Write([]byte(stateBody))
	}))
	defer server.Close()

	state, err := NewClient(server.URL, time.Second).State(context.Background())
	require.NoError(t, err)
	assert.False(t, state.GameOver)
}

func TestClient_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"plain text", "Invalid direction\n", "Invalid direction"},
		{"json", `{"error":"engine unavailable"}`, "engine unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, 0).Move(context.Background(), board.Up)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStatus))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "400")
		})
	}
}

func TestClient_InvalidSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"board":[[3,0,0,0],[0,0,0,0],[0,0,0,0],[0,0,0,0]],"score":0,"gameOver":false,"won":false}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).State(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, board.ErrInvalidSnapshot)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, 0).NewGame(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, board.ErrInvalidSnapshot)
}

func TestClient_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, 0).State(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
