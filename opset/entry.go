// Package opset is the per-document op-set index (spec.md §4.E): it keeps
// every object's ops in OpId/key order, resolves visibility, and answers
// Get/GetAll/Length/TextAt/Keys/Marks for document's reads and diffs.
package opset

import (
	"github.com/google/btree"

	"github.com/ledgerwatch/turbocrdt/common"
)

// entry is one op as stored in the index: the wire Op plus the hash of the
// change that introduced it, the latter needed to test "is this op an
// ancestor of H" for historical (non-current-heads) reads.
type entry struct {
	op     common.Op
	change common.ChangeHash
}

// byOpIdAsc orders entries within one key's conflict-set history oldest
// first, so the map-update tie-break ("winner is greatest OpId", spec.md
// §4.E) is the first item a descending scan visits.
type byOpIdAsc struct{ e *entry }

func (a byOpIdAsc) Less(than btree.Item) bool {
	return a.e.op.ID.Less(than.(byOpIdAsc).e.op.ID)
}

// byOpIdDesc orders insert-op children of one anchor newest first — the
// RGA rule that two concurrent inserts at the same anchor are ordered
// "later OpId sorts earlier, right-to-left among siblings" (spec.md
// §4.E).
type byOpIdDesc struct{ id common.OpId }

func (a byOpIdDesc) Less(than btree.Item) bool {
	return than.(byOpIdDesc).id.Less(a.id)
}
