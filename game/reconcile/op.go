package reconcile

import (
	"fmt"

	"github.com/wricardo/mcp-training/merge2048/game/board"
	"github.com/wricardo/mcp-training/merge2048/game/tile"
)

// Kind tags an Op.
type Kind int

const (
	KindMove Kind = iota
	KindMerge
	KindSpawn
	KindRemove
)

var kindNames = [...]string{"move", "merge", "spawn", "remove"}

func (k Kind) String() string {
	if k < KindMove || k > KindRemove {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, n := range kindNames {
		if n == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown op kind %q", text)
}

// Op is one visual transition.
//
//	Move:   ID slides From -> To keeping Value.
//	Merge:  ID (survivor) from From and Consumed from From2 slide into To and
//	        become one tile of Value.
//	Spawn:  ID appears at To with Value.
//	Remove: ID disappears from From. Only emitted for inconsistent frames.
type Op struct {
	Kind     Kind       `json:"kind"`
	ID       tile.ID    `json:"id"`
	Consumed tile.ID    `json:"consumed,omitempty"`
	From     board.Cell `json:"from"`
	From2    board.Cell `json:"from2"`
	To       board.Cell `json:"to"`
	Value    int        `json:"value"`
}

// Move builds a Move op.
func Move(id tile.ID, from, to board.Cell, value int) Op {
	return Op{Kind: KindMove, ID: id, From: from, To: to, Value: value}
}

// Merge builds a Merge op.
func Merge(survivor, consumed tile.ID, from1, from2, to board.Cell, newValue int) Op {
	return Op{Kind: KindMerge, ID: survivor, Consumed: consumed, From: from1, From2: from2, To: to, Value: newValue}
}

// Spawn builds a Spawn op.
func Spawn(id tile.ID, at board.Cell, value int) Op {
	return Op{Kind: KindSpawn, ID: id, From: at, To: at, Value: value}
}

// Remove builds a Remove op.
func Remove(id tile.ID, at board.Cell, value int) Op {
	return Op{Kind: KindRemove, ID: id, From: at, To: at, Value: value}
}

// HasDestination reports whether the op writes a cell of the next board.
func (o Op) HasDestination() bool {
	return o.Kind != KindRemove
}

func (o Op) String() string {
	switch o.Kind {
	case KindMove:
		return fmt.Sprintf("Move(%v, %v->%v)", o.ID, o.From, o.To)
	case KindMerge:
		return fmt.Sprintf("Merge(%v+%v, %v+%v->%v, %d)", o.ID, o.Consumed, o.From, o.From2, o.To, o.Value)
	case KindSpawn:
		return fmt.Sprintf("Spawn(%v, %v, %d)", o.ID, o.To, o.Value)
	case KindRemove:
		return fmt.Sprintf("Remove(%v, %v)", o.ID, o.From)
	}
	return o.Kind.String()
}

// IssueKind classifies a recovered inconsistency.
type IssueKind int

const (
	// IssueLeftover: a previous tile was not consumed by any next cell.
	IssueLeftover IssueKind = iota
	// IssueMissingIdentity: a previous tile had no committed identity.
	IssueMissingIdentity
	// IssueUnexplained: a next cell matched no rule and was spawned.
	IssueUnexplained
	// IssueDoubleClaim: an identity was consumed twice; the frame fell back to spawns.
	IssueDoubleClaim
)

var issueNames = [...]string{"leftover", "missing_identity", "unexplained", "double_claim"}

func (k IssueKind) String() string {
	if k < IssueLeftover || k > IssueDoubleClaim {
		return fmt.Sprintf("issue(%d)", int(k))
	}
	return issueNames[k]
}

// MarshalText encodes the issue kind by name.
func (k IssueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes an issue kind name.
func (k *IssueKind) UnmarshalText(text []byte) error {
	for i, n := range issueNames {
		if n == string(text) {
			*k = IssueKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown issue kind %q", text)
}

// Issue describes one inconsistency found while reconciling.
type Issue struct {
	Kind  IssueKind  `json:"kind"`
	Line  int        `json:"line"`
	Cell  board.Cell `json:"cell"`
	Value int        `json:"value"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%v line=%d cell=%v value=%d", i.Kind, i.Line, i.Cell, i.Value)
}

// Count returns how many ops of kind k are in ops.
func Count(ops []Op, k Kind) int {
	n := 0
	for _, op := range ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}

// MergedScore sums the values produced by Merge ops. For a legal move this is
// the score increase the rules engine reports.
func MergedScore(ops []Op) int {
	total := 0
	for _, op := range ops {
		if op.Kind == KindMerge {
			total += op.Value
		}
	}
	return total
}
