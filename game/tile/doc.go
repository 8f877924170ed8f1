// Package tile tracks the client-side identity of every tile on the board.
//
// The rules engine only ever reports values per cell. To animate a slide the
// client needs to know that the 8 now at (0,3) is the same tile that sat at
// (0,1) a moment ago, so each tile is given an ID the first time it is seen and
// carried forward across transitions.
//
// Table is an immutable cell-to-tile mapping. Tracker holds the committed Table
// for one game session and replaces it wholesale on Commit; nothing observes a
// half-applied transition. Claims guards a single transition against consuming
// the same identity twice.
package tile
