package common

import "fmt"

// OpId is the pair (counter, actor) that uniquely names one op, per
// spec.md §3. Ordering is by counter first, then actor bytes — the order
// used everywhere an op-set needs a "latest wins" tie-break.
type OpId struct {
	Counter uint64
	Actor   ActorId
}

// Root is the reserved OpId (0, "") that names the ROOT object.
var Root = OpId{Counter: 0, Actor: ""}

func (id OpId) IsRoot() bool { return id.Counter == 0 && id.Actor == "" }

// Less orders OpIds by (counter, actor-bytes), matching spec.md §3 and §4.A.
func (id OpId) Less(other OpId) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.Actor.Less(other.Actor)
}

func (id OpId) String() string {
	if id.IsRoot() {
		return "_root"
	}
	return fmt.Sprintf("%d@%s", id.Counter, id.Actor)
}

// ObjectId is the OpId of the op that created the object; ROOT is special
// (spec.md §3). It is a type alias of OpId: the name marks "the object an
// op lives in" in signatures, but the compiler treats the two as one type.
type ObjectId = OpId

// RootObject is the sentinel ObjectId naming the top-level map.
var RootObject = Root

// CompareOpId gives a three-way comparator for use with sort.Slice-style
// callers and B-tree Less adapters.
func CompareOpId(a, b OpId) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}
