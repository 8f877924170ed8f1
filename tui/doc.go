// Package tui plays a session in the terminal with Bubble Tea.
//
// View is the session.View for a local controller: it turns slide, settle
// and commit calls into program messages. Model draws each phase, moving
// tiles between cells while a slide runs and marking merged and spawned
// tiles while they settle.
package tui
