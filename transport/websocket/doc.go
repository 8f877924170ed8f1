// Package websocket streams session render events to browser clients.
//
// A Hub groups connections by session ID. Each session's Controller renders
// through a View obtained from Hub.View, so every slide, settle and commit
// step of an animation cycle, and every notice, reaches all connected
// clients as one JSON Message per websocket frame.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	ctrl := session.NewController(id, source, session.Options{View: hub.View(id)})
//
// Clients never send commands over the socket; moves go through the HTTP
// API. The hub's session map is owned by Run, and every other method
// talks to it over channels.
package websocket
