package common

import "sort"

// OpAction enumerates the op kinds from spec.md §3.
type OpAction uint8

const (
	ActionMakeMap OpAction = iota
	ActionMakeList
	ActionMakeText
	ActionMakeTable
	ActionSet
	ActionDelete
	ActionIncrement
	ActionMark
	ActionUnmark
)

func (a OpAction) String() string {
	switch a {
	case ActionMakeMap:
		return "makeMap"
	case ActionMakeList:
		return "makeList"
	case ActionMakeText:
		return "makeText"
	case ActionMakeTable:
		return "makeTable"
	case ActionSet:
		return "set"
	case ActionDelete:
		return "del"
	case ActionIncrement:
		return "inc"
	case ActionMark:
		return "mark"
	case ActionUnmark:
		return "unmark"
	default:
		return "unknown"
	}
}

// IsMake reports whether this action creates a new object whose id is this
// op's own id (spec.md §3 invariant 1).
func (a OpAction) IsMake() bool {
	switch a {
	case ActionMakeMap, ActionMakeList, ActionMakeText, ActionMakeTable:
		return true
	default:
		return false
	}
}

func (a OpAction) ObjType() ObjType {
	switch a {
	case ActionMakeList:
		return ObjTypeList
	case ActionMakeText:
		return ObjTypeText
	case ActionMakeTable:
		return ObjTypeTable
	default:
		return ObjTypeMap
	}
}

// ExpandMark is the expansion policy for a Mark op, per spec.md §4.E.
type ExpandMark uint8

const (
	ExpandNone ExpandMark = iota
	ExpandBefore
	ExpandAfter
	ExpandBoth
)

func (e ExpandMark) String() string {
	switch e {
	case ExpandNone:
		return "none"
	case ExpandBefore:
		return "before"
	case ExpandAfter:
		return "after"
	case ExpandBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Op is one atomic mutation on one object, per spec.md §3. Succ is
// maintained only in the in-memory op-set index (§4.E) and is never part
// of the wire format (§3: "succ ... not in the wire format").
type Op struct {
	ID     OpId
	Obj    ObjectId
	Key    Key
	Action OpAction
	Insert bool
	Value     Value      // meaningful for ActionSet
	Delta     int64      // meaningful for ActionIncrement
	Mark      string     // mark name; meaningful for ActionMark/ActionUnmark
	MarkValue Value      // mark payload; meaningful for ActionMark
	Expand    ExpandMark // meaningful for ActionMark
	MarkEnd   OpId       // meaningful for ActionMark/ActionUnmark: id of the op closing the marked range

	Pred HashSetOpId
	Succ HashSetOpId `json:"-"`
}

// HashSetOpId is a small unordered set of OpIds, used for pred/succ.
type HashSetOpId map[OpId]struct{}

func NewOpIdSet(ids ...OpId) HashSetOpId {
	s := make(HashSetOpId, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s HashSetOpId) Add(id OpId)      { s[id] = struct{}{} }
func (s HashSetOpId) Has(id OpId) bool { _, ok := s[id]; return ok }
func (s HashSetOpId) Remove(id OpId)   { delete(s, id) }
func (s HashSetOpId) Len() int         { return len(s) }

func (s HashSetOpId) Slice() []OpId {
	out := make([]OpId, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (s HashSetOpId) Equal(other HashSetOpId) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

func (s HashSetOpId) Clone() HashSetOpId {
	out := make(HashSetOpId, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IsVisible reports whether op has no successor recorded — i.e. nothing
// currently applied overwrites or deletes it (spec.md §3 invariant 3, with
// "at heads H" narrowed by the caller to the ops visible at H).
func (op *Op) IsVisible() bool { return len(op.Succ) == 0 }
