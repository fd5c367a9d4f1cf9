package opset

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/google/btree"

	"github.com/ledgerwatch/turbocrdt/common"
)

// btreeDegree matches the teacher's own choice where it builds ad hoc
// ordered indexes (turbo/stages/headerdownload uses GoLLRB, which has no
// degree parameter; 32 is google/btree's own example-documented default
// and is a reasonable node fan-out for the small per-object trees here).
const btreeDegree = 32

// objectIndex holds one object's ops: a per-key conflict-set history for
// map/table keys and sequence elements alike, plus (for list/text/table
// objects) the insert-op tree that gives the RGA traversal order.
type objectIndex struct {
	kind common.ObjType

	// keyEntries[key] holds every op ever applied at that key, oldest
	// first (byOpIdAsc), for maps this is MapKeyOf(str); for sequences
	// it's ElemKeyOf(elementId) and always includes the creating insert
	// op itself (inserted under its own element key).
	keyEntries map[common.Key]*btree.BTree

	// children[anchor] holds the ids of insert ops anchored at `anchor`
	// (HeadElem for the virtual list head, or an existing element id),
	// ordered newest-OpId-first (spec.md §4.E RGA rule). Sequence objects
	// only.
	children map[common.OpId]*btree.BTree

	// rank/nextRank/visible cache "is this element currently visible"
	// for O(1) Length at the live heads (RoaringBitmap-backed); TextAt,
	// ElementIds and historical-H queries bypass this and walk the
	// elements directly.
	rank     map[common.OpId]uint32
	nextRank uint32
	visible  *roaring.Bitmap

	// marks holds every Mark op ever applied to this (text) object, for
	// the marks(text,range,H) query; cancellation is just ordinary
	// pred/succ visibility (an Unmark's Pred names the Mark it cancels).
	marks []*entry
}

func newObjectIndex(kind common.ObjType) *objectIndex {
	oi := &objectIndex{
		kind:       kind,
		keyEntries: map[common.Key]*btree.BTree{},
	}
	if kind.IsSequence() {
		oi.children = map[common.OpId]*btree.BTree{}
		oi.rank = map[common.OpId]uint32{}
		oi.visible = roaring.New()
	}
	return oi
}

func (oi *objectIndex) keyTree(key common.Key) *btree.BTree {
	t, ok := oi.keyEntries[key]
	if !ok {
		t = btree.New(btreeDegree)
		oi.keyEntries[key] = t
	}
	return t
}

func (oi *objectIndex) addToKey(key common.Key, e *entry) {
	oi.keyTree(key).ReplaceOrInsert(byOpIdAsc{e})
}

func (oi *objectIndex) keyEntriesAsc(key common.Key) []*entry {
	t, ok := oi.keyEntries[key]
	if !ok {
		return nil
	}
	out := make([]*entry, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		out = append(out, i.(byOpIdAsc).e)
		return true
	})
	return out
}

// addChild registers id as a new sequence element anchored after anchor,
// assigning it the next rank for the visibility bitmap.
func (oi *objectIndex) addChild(anchor, id common.OpId) uint32 {
	t, ok := oi.children[anchor]
	if !ok {
		t = btree.New(btreeDegree)
		oi.children[anchor] = t
	}
	t.ReplaceOrInsert(byOpIdDesc{id: id})

	r := oi.nextRank
	oi.nextRank++
	oi.rank[id] = r
	return r
}

// childrenDesc returns the ids of insert ops anchored at anchor, in RGA
// sibling order (newest OpId first).
func (oi *objectIndex) childrenDesc(anchor common.OpId) []common.OpId {
	t, ok := oi.children[anchor]
	if !ok {
		return nil
	}
	out := make([]common.OpId, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		out = append(out, i.(byOpIdDesc).id)
		return true
	})
	return out
}

// elementsPreorder returns every sequence element id in document order: a
// pre-order walk of the insert tree rooted at the virtual head, visiting
// each anchor's children newest-OpId-first and recursing into each
// child's own children before moving to the next sibling (spec.md §4.E:
// "right-to-left among siblings ... then recursively").
func (oi *objectIndex) elementsPreorder() []common.OpId {
	var out []common.OpId
	var visit func(anchor common.OpId)
	visit = func(anchor common.OpId) {
		for _, child := range oi.childrenDesc(anchor) {
			out = append(out, child)
			visit(child)
		}
	}
	visit(common.HeadElem)
	return out
}
