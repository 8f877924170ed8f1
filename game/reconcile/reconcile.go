package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// Result is the outcome of one reconciliation.
type Result struct {
	Ops []Op `json:"ops"`
	// Table is the identity table describing the next board.
	Table tile.Table `json:"-"`
	// Retired lists identities of the input table that do not survive.
	Retired []tile.ID `json:"retired,omitempty"`
	Issues  []Issue   `json:"issues,omitempty"`
	// Fallback is set when the frame was rebuilt from Spawn ops only.
	Fallback bool `json:"fallback,omitempty"`
}

// entry is one previous tile in travel order.
type entry struct {
	cell  board.Cell
	value int
	id    tile.ID
	known bool
}

// Reconcile maps the transition prev -> next under dir onto animation ops.
// A nil prev marks an initial snapshot: every tile of next is spawned.
func Reconcile(prev *board.Board, next board.Board, dir board.Direction, table tile.Table) Result {
	if prev == nil {
		return spawnAll(next, table, nil)
	}

	res, err := sweep(*prev, next, dir, table)
	if err != nil {
		issues := append(res.Issues, Issue{Kind: IssueDoubleClaim, Line: -1})
		fb := spawnAll(next, table, issues)
		fb.Fallback = true
		return fb
	}
	return res
}

func sweep(prev, next board.Board, dir board.Direction, table tile.Table) (Result, error) {
	var (
		res    Result
		tiles  []tile.Tile
		claims = tile.NewClaims()
	)

	claim := func(e entry) error {
		if !e.known {
			return nil
		}
		return claims.Claim(e.id)
	}

	for line := 0; line < board.Size; line++ {
		cells := board.Line(dir, line)
		prevSeq := lineEntries(prev, cells, table)

		i := 0
		for _, to := range cells {
			nv := next.At(to)
			if nv == 0 {
				continue
			}

			switch {
			case i < len(prevSeq) && prevSeq[i].value == nv:
				p := prevSeq[i]
				i++
				if err := claim(p); err != nil {
					return res, err
				}
				if !p.known {
					res.Issues = append(res.Issues, Issue{Kind: IssueMissingIdentity, Line: line, Cell: p.cell, Value: p.value})
					spawned := tile.Tile{ID: tile.NewID(), Cell: to, Value: nv}
					res.Ops = append(res.Ops, Spawn(spawned.ID, to, nv))
					tiles = append(tiles, spawned)
					continue
				}
				res.Ops = append(res.Ops, Move(p.id, p.cell, to, nv))
				tiles = append(tiles, tile.Tile{ID: p.id, Cell: to, Value: nv})

			case i+1 < len(prevSeq) && nv%2 == 0 && prevSeq[i].value == nv/2 && prevSeq[i+1].value == nv/2:
				a, b := prevSeq[i], prevSeq[i+1]
				i += 2
				if err := claim(a); err != nil {
					return res, err
				}
				if err := claim(b); err != nil {
					return res, err
				}
				if !a.known || !b.known {
					for _, e := range []entry{a, b} {
						if e.known {
							res.Ops = append(res.Ops, Remove(e.id, e.cell, e.value))
						} else {
							res.Issues = append(res.Issues, Issue{Kind: IssueMissingIdentity, Line: line, Cell: e.cell, Value: e.value})
						}
					}
					spawned := tile.Tile{ID: tile.NewID(), Cell: to, Value: nv}
					res.Ops = append(res.Ops, Spawn(spawned.ID, to, nv))
					tiles = append(tiles, spawned)
					continue
				}
				res.Ops = append(res.Ops, Merge(a.id, b.id, a.cell, b.cell, to, nv))
				tiles = append(tiles, tile.Tile{ID: a.id, Cell: to, Value: nv})

			default:
				// A tile the rules engine spawns always lands behind every
				// compacted tile, so a spawn while previous tiles remain is
				// unexplained.
				if i < len(prevSeq) {
					res.Issues = append(res.Issues, Issue{Kind: IssueUnexplained, Line: line, Cell: to, Value: nv})
				}
				spawned := tile.Tile{ID: tile.NewID(), Cell: to, Value: nv}
				res.Ops = append(res.Ops, Spawn(spawned.ID, to, nv))
				tiles = append(tiles, spawned)
			}
		}

		for ; i < len(prevSeq); i++ {
			p := prevSeq[i]
			res.Issues = append(res.Issues, Issue{Kind: IssueLeftover, Line: line, Cell: p.cell, Value: p.value})
			if !p.known {
				continue
			}
			if err := claim(p); err != nil {
				return res, err
			}
			res.Ops = append(res.Ops, Remove(p.id, p.cell, p.value))
		}
	}

	nextTable, err := tile.NewTable(tiles...)
	if err != nil {
		return res, fmt.Errorf("failed to build identity table: %w", err)
	}
	res.Table = nextTable
	res.Retired = retired(table, nextTable)
	return res, nil
}

// lineEntries collects the previous tiles of one line in travel order,
// resolving each against the committed table.
func lineEntries(prev board.Board, cells [board.Size]board.Cell, table tile.Table) []entry {
	var seq []entry
	for _, c := range cells {
		v := prev.At(c)
		if v == 0 {
			continue
		}
		e := entry{cell: c, value: v}
		if t, ok := table.Lookup(c); ok && t.Value == v {
			e.id = t.ID
			e.known = true
		}
		seq = append(seq, e)
	}
	return seq
}

// spawnAll redraws next from scratch: every old tile is removed and every
// nonzero cell gets a fresh identity.
func spawnAll(next board.Board, table tile.Table, issues []Issue) Result {
	res := Result{Issues: issues}
	for _, old := range table.Tiles() {
		res.Ops = append(res.Ops, Remove(old.ID, old.Cell, old.Value))
	}

	var tiles []tile.Tile
	for _, c := range next.Occupied() {
		t := tile.Tile{ID: tile.NewID(), Cell: c, Value: next.At(c)}
		res.Ops = append(res.Ops, Spawn(t.ID, c, t.Value))
		tiles = append(tiles, t)
	}

	// Occupied cells are distinct, so the table cannot collide.
	res.Table, _ = tile.NewTable(tiles...)
	res.Retired = retired(table, res.Table)
	return res
}

func retired(before, after tile.Table) []tile.ID {
	var ids []tile.ID
	for _, t := range before.Tiles() {
		if !after.Has(t.ID) {
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Verify checks that res explains next: op destinations are exactly the
// nonzero cells of next with matching values, no identity is a source twice,
// and the table describes next.
func Verify(next board.Board, res Result) error {
	var errs []error

	written := make(map[board.Cell]bool)
	sources := make(map[tile.ID]bool)
	useSource := func(id tile.ID) {
		if sources[id] {
			errs = append(errs, fmt.Errorf("identity %v used as a source twice", id))
		}
		sources[id] = true
	}

	for _, op := range res.Ops {
		switch op.Kind {
		case KindMove:
			useSource(op.ID)
		case KindMerge:
			useSource(op.ID)
			useSource(op.Consumed)
		}
		if !op.HasDestination() {
			continue
		}
		if written[op.To] {
			errs = append(errs, fmt.Errorf("cell %v written twice", op.To))
		}
		written[op.To] = true
		if got := next.At(op.To); got != op.Value {
			errs = append(errs, fmt.Errorf("%v writes %d but next board holds %d", op, op.Value, got))
		}
	}

	for _, c := range next.Occupied() {
		if !written[c] {
			errs = append(errs, fmt.Errorf("cell %v left unexplained", c))
		}
	}

	if !res.Table.Describes(next) {
		errs = append(errs, fmt.Errorf("identity table (%d tiles) does not describe next board (%d tiles)", res.Table.Len(), next.Count()))
	}

	return errors.Join(errs...)
}
