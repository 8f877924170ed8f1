// Package api provides the HTTP control surface for hosted client sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session and start (or resume) its game
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/{id} - Get one session
//   - DELETE /api/sessions/{id} - Stop and remove a session
//
// Game Operations:
//   - POST /api/sessions/{id}/move - {"direction":"left"}; waits for the cycle to commit
//   - POST /api/sessions/{id}/new-game - Start a new game, abandoning anything in flight
//   - GET /api/sessions/{id}/tiles - Committed state and identified tiles
//
// Other:
//   - GET /health
//   - GET /metrics - Prometheus exposition
//   - GET /ws?session={id} - Render event stream for one session
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status derived from the error:
//
//	{
//	  "error": "transition in progress",
//	  "code": 409
//	}
//
// 400 bad direction or body, 404 unknown session, 409 busy or no game,
// 422 invalid snapshot from the rules engine, 502 rules engine unreachable.
package api
