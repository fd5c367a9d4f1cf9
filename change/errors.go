package change

import "fmt"

// Typed failure modes for Decode, per spec.md §7: a decode failure names
// its kind instead of returning a bare string so callers can distinguish a
// corrupt actor-table reference from a tampered counter sequence, the way
// document/errors.go's typed errors let the document API distinguish its
// own failure kinds.

// UnknownActorError names an actor-table index a column referenced that
// does not exist in the change's decoded actor table.
type UnknownActorError struct {
	Column string
	Index  int
	Actors int
}

func (e *UnknownActorError) Error() string {
	return fmt.Sprintf("change: %s references actor index %d, actor table has %d entries", e.Column, e.Index, e.Actors)
}

// OutOfOrderCountersError names a change whose own ops do not carry
// sequential, gapless counters starting at StartOp (spec.md §7's
// invariant 4: "counters within a change are sequential from StartOp").
type OutOfOrderCountersError struct {
	Actor    string
	Expected uint64
	Got      uint64
}

func (e *OutOfOrderCountersError) Error() string {
	return fmt.Sprintf("change: actor %s: expected counter %d, got %d", e.Actor, e.Expected, e.Got)
}
