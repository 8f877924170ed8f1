// Package mcp exposes hosted client sessions to AI agents over the Model
// Context Protocol.
//
// The Client registers MCP tools and forwards every call to the session
// server's REST API, formatting the JSON replies as text:
//   - create_session: Create a session, optionally resuming the engine's game
//   - list_sessions: List active sessions with their scores
//   - delete_session: Stop a session
//   - new_game: Start a new game
//   - move: Slide in a direction; reports merges, spawns and the score delta
//   - board_state: Committed board plus the identity of every tile
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
// Request failures are returned as tool error results, never as protocol
// errors, so agents see the server's message.
package mcp
