// Package session runs client game sessions.
//
// A Controller owns one session: the identity tracker, the animation scheduler
// and the committed GameState. All of that is mutated on a single goroutine
// (Run), which processes closures posted by callers, network replies and phase
// timers in order. Nothing is locked; ordering is the consistency mechanism.
//
// Input handling:
//   - Move is dropped with ErrBusy while a request or animation is in flight.
//     A dropped move changes nothing.
//   - NewGame always wins. It abandons the in-flight cycle, discards pending
//     replies and presents the new board as all spawns once it arrives.
//   - A failed request shows a transient Notice and leaves board, score and
//     identity table untouched. Nothing is retried.
//
// Manager hosts many sessions keyed by uuid, each with its own controller loop,
// and expires idle ones.
//
// Usage:
//
//	ctrl := session.NewController("local", rulesClient, session.Options{View: view})
//	go ctrl.Run(ctx)
//
//	if _, err := ctrl.Resume(ctx); err != nil {
//		...
//	}
//	tr, err := ctrl.Move(ctx, board.Left)
//	if errors.Is(err, session.ErrBusy) {
//		// dropped
//	}
package session
