package tile

import "github.com/wricardo/mcp-training/merge2048/game/board"

// Tracker holds the committed identity table of one game session.
//
// A Tracker is not safe for concurrent use. It belongs to the animation
// scheduler, which only touches it from its session's event loop.
type Tracker struct {
	table   Table
	commits int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Lookup returns the committed tile at c.
func (t *Tracker) Lookup(c board.Cell) (Tile, bool) {
	return t.table.Lookup(c)
}

// Table returns the committed table.
func (t *Tracker) Table() Table {
	return t.table
}

// Commit replaces the committed table.
func (t *Tracker) Commit(next Table) {
	t.table = next
	t.commits++
}

// Reset forgets every identity.
func (t *Tracker) Reset() {
	t.table = Table{}
	t.commits = 0
}

// Commits returns the number of commits since the last reset.
func (t *Tracker) Commits() int {
	return t.commits
}
