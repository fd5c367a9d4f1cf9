package opset

import "github.com/ledgerwatch/turbocrdt/common"

// MarkSpan is one active formatting range, as spec.md §4.E's
// marks(text,range,H) query returns it.
type MarkSpan struct {
	ID    common.OpId // the Mark op's own id, needed to build an Unmark's Pred
	Name  string
	Value common.Value
	Start common.OpId
	End   common.OpId
}

// Marks returns every mark active on obj (a text object) under heads that
// has not been cancelled by a visible Unmark (spec.md §4.E Marks).
func (idx *Index) Marks(obj common.ObjectId, heads []common.ChangeHash) []MarkSpan {
	objIdx, ok := idx.objects[obj]
	if !ok {
		return nil
	}

	var anc common.HashSet
	if heads != nil {
		anc = idx.resolver.Ancestors(heads)
	}

	var out []MarkSpan
	for _, e := range objIdx.marks {
		if heads == nil {
			if !liveVisible(e) {
				continue
			}
		} else {
			if !anc.Has(e.change) || !idx.visibleAt(e, anc) {
				continue
			}
		}
		out = append(out, MarkSpan{
			ID:    e.op.ID,
			Name:  e.op.Mark,
			Value: e.op.MarkValue,
			Start: e.op.Key.Elem,
			End:   e.op.MarkEnd,
		})
	}
	return out
}
