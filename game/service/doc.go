// Package service is the layer the HTTP, websocket and MCP transports call.
//
// GameService wraps a session manager: it resolves session IDs, parses
// directions, drives each session's Controller and turns committed
// transitions into transport-friendly results.
//
// Usage:
//
//	mgr := session.NewManager(ctx, factory, metrics)
//	svc := service.NewGameService(mgr, logger)
//
//	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{})
//	if err != nil {
//		return err
//	}
//
//	res, err := svc.Move(ctx, info.ID, "left")
//
// Errors from the session package (ErrBusy, ErrSessionNotFound,
// ErrTransport) and board.ErrInvalidSnapshot / board.ErrInvalidDirection
// pass through unchanged or wrapped, so callers can map them with errors.Is.
package service
