// Package reconcile infers tile movement from two board snapshots.
//
// The rules engine reports full boards only. Given the previous board, the next
// board, the move direction and the committed identity table, Reconcile decides
// which tile slid where, which pairs merged and which tiles are new, and returns
// the animation ops together with the identity table for the next frame.
//
// Matching walks each line in travel order with two cursors:
//
//	next value == prev[i]                 -> Move,  i += 1
//	prev[i] == prev[i+1] == next value/2  -> Merge, i += 2 (survivor is prev[i])
//	otherwise                             -> Spawn, i unchanged
//
// Previous tiles left over at the end of a line are dropped and reported as an
// Issue. The pairing of three or more equal tiles in one line follows travel
// order and nothing else, so results are reproducible.
//
// Reconcile never mutates the table it is given. If a transition would consume
// the same identity twice the whole frame degrades to Spawn ops.
package reconcile
