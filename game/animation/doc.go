// Package animation realizes a reconciled transition as two timed phases.
//
// Phase one (slide) moves every Move op and both halves of every Merge toward
// their destination. Phase two (settle) relabels merge survivors, removes the
// consumed tiles and fades spawned tiles in. Only when the settle phase ends is
// the frame's identity table committed to the tracker.
//
// The Scheduler does not own a goroutine. Phase callbacks are handed to a
// Dispatcher, which runs them on the event loop that owns the session, so the
// tracker is only ever touched from that loop. IsBusy is safe from anywhere.
//
// One cycle runs at a time: Schedule returns ErrBusy while a frame is in
// flight. Abandon is the new-game override; timers of the abandoned cycle still
// fire but find their generation stale and resolve with ErrAbandoned without
// rendering or committing.
package animation
