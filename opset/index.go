package opset

import (
	"crypto/sha256"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
)

const getCacheSize = 4096

// Index is one document's op-set: every object's ops, keyed and ordered
// per spec.md §4.E, plus the flat op registry pred/succ bookkeeping needs.
type Index struct {
	resolver HeadsResolver

	objects  map[common.ObjectId]*objectIndex
	registry map[common.OpId]*entry

	getCache *lru.Cache
}

// New builds an Index with a pre-created ROOT map object. resolver may be
// nil if the caller never queries a historical H (every read then uses
// the fast, Succ-only "live" path).
func New(resolver HeadsResolver) *Index {
	idx := &Index{
		resolver: resolver,
		objects:  map[common.ObjectId]*objectIndex{},
		registry: map[common.OpId]*entry{},
	}
	idx.objects[common.RootObject] = newObjectIndex(common.ObjTypeMap)
	cache, err := lru.New(getCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size, which getCacheSize never is
	}
	idx.getCache = cache
	return idx
}

// SetResolver wires a hashgraph.Graph (or test double) in after
// construction, for the common document.go wiring order (index built
// before the graph that references it as an Applier exists).
func (idx *Index) SetResolver(r HeadsResolver) { idx.resolver = r }

// Apply folds one change's ops into the index, in order. It implements
// hashgraph.Applier.
func (idx *Index) Apply(c *change.Change) error {
	for _, op := range c.Ops {
		if err := idx.applyOp(op, c.Hash); err != nil {
			return err
		}
	}
	idx.getCache.Purge()
	return nil
}

func (idx *Index) applyOp(op common.Op, changeHash common.ChangeHash) error {
	e := &entry{op: op, change: changeHash}
	idx.registry[op.ID] = e

	objIdx, ok := idx.objects[op.Obj]
	if !ok {
		return fmt.Errorf("opset: unknown object %s referenced by op %s", op.Obj, op.ID)
	}

	if op.Action.IsMake() {
		idx.objects[op.ID] = newObjectIndex(op.Action.ObjType())
	}

	// Predecessors' Succ must be updated before any visibility recompute
	// below runs, or an overwrite/delete would consult a bitmap that
	// still thinks the op it just superseded is live.
	for _, predID := range op.Pred.Slice() {
		pred, ok := idx.registry[predID]
		if !ok {
			continue
		}
		if op.Action != common.ActionIncrement {
			pred.op.Succ.Add(op.ID)
		}
	}

	// Mark/Unmark/Delete carry no content of their own — a Mark is
	// tracked only in objIdx.marks, and Unmark/Delete act purely by
	// shadowing their target through Pred (handled by the Succ loop
	// above) — so none of the three get a keyEntries slot, which would
	// otherwise let them outrank the actual value at that key by virtue
	// of having a newer OpId.
	switch {
	case op.Action == common.ActionMark:
		objIdx.marks = append(objIdx.marks, e)
	case op.Action == common.ActionUnmark:
		// no-op: cancellation already took effect via the Succ loop.
	case op.Insert:
		if objIdx.children == nil {
			return fmt.Errorf("opset: insert op %s targets non-sequence object %s", op.ID, op.Obj)
		}
		rank := objIdx.addChild(op.Key.Elem, op.ID)
		objIdx.addToKey(common.ElemKeyOf(op.ID), e)
		objIdx.visible.Add(rank)
	case op.Action == common.ActionDelete:
		if objIdx.children != nil && !op.Key.IsMap {
			idx.recomputeElementVisibility(objIdx, op.Key.Elem)
		}
	default:
		objIdx.addToKey(op.Key, e)
		if objIdx.children != nil && !op.Key.IsMap {
			idx.recomputeElementVisibility(objIdx, op.Key.Elem)
		}
	}

	return nil
}

// recomputeElementVisibility refreshes the RoaringBitmap cache entry for
// one sequence element after an op attached to (or detached from, via a
// predecessor Succ update) its key.
func (idx *Index) recomputeElementVisibility(objIdx *objectIndex, elemID common.OpId) {
	rank, ok := objIdx.rank[elemID]
	if !ok {
		return
	}
	visible := false
	for _, e := range objIdx.keyEntriesAsc(common.ElemKeyOf(elemID)) {
		if liveVisible(e) {
			visible = true
			break
		}
	}
	if visible {
		objIdx.visible.Add(rank)
	} else {
		objIdx.visible.Remove(rank)
	}
}

func liveVisible(e *entry) bool { return e.op.Succ.Len() == 0 }

// headsFingerprint folds a heads set into one comparable cache key
// component; nil means "current heads", a value this cache never
// confuses with any real fingerprint since it takes a distinct branch.
func headsFingerprint(heads []common.ChangeHash) common.ChangeHash {
	sorted := common.SortHashes(heads)
	h := sha256.New()
	for _, hash := range sorted {
		h.Write(hash[:])
	}
	var out common.ChangeHash
	copy(out[:], h.Sum(nil))
	return out
}

type getCacheKey struct {
	obj  common.ObjectId
	key  common.Key
	live bool
	fp   common.ChangeHash
}

// winningOp returns the visible op with the greatest OpId at (obj,key)
// under heads (nil meaning current), per spec.md §4.E Get. Increment ops
// are never themselves a winning op — they only ever amend a Set's
// counter value (resolveValue folds them in) — so they're skipped here
// exactly as allVisible skips them for GetAll's conflict set.
func (idx *Index) winningOp(obj common.ObjectId, key common.Key, heads []common.ChangeHash) (*entry, bool) {
	objIdx, ok := idx.objects[obj]
	if !ok {
		return nil, false
	}
	entries := objIdx.keyEntriesAsc(key)

	if heads == nil {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if e.op.Action != common.ActionIncrement && liveVisible(e) {
				return e, true
			}
		}
		return nil, false
	}

	anc := idx.resolver.Ancestors(heads)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.op.Action == common.ActionIncrement || !anc.Has(e.change) {
			continue
		}
		if idx.visibleAt(e, anc) {
			return e, true
		}
	}
	return nil, false
}

func (idx *Index) visibleAt(e *entry, anc common.HashSet) bool {
	for _, succID := range e.op.Succ.Slice() {
		succ, ok := idx.registry[succID]
		if ok && anc.Has(succ.change) {
			return false
		}
	}
	return true
}

// allVisible returns every visible entry at (obj,key) under heads, in
// ascending OpId order — the conflict set spec.md §4.E's GetAll names.
func (idx *Index) allVisible(obj common.ObjectId, key common.Key, heads []common.ChangeHash) []*entry {
	objIdx, ok := idx.objects[obj]
	if !ok {
		return nil
	}
	entries := objIdx.keyEntriesAsc(key)
	var anc common.HashSet
	if heads != nil {
		anc = idx.resolver.Ancestors(heads)
	}
	var out []*entry
	for _, e := range entries {
		if e.op.Action == common.ActionIncrement {
			continue
		}
		if heads == nil {
			if liveVisible(e) {
				out = append(out, e)
			}
			continue
		}
		if anc.Has(e.change) && idx.visibleAt(e, anc) {
			out = append(out, e)
		}
	}
	return out
}

// ConflictIds returns the OpIds of the conflict set allVisible computes at
// (obj,key,heads) — document.Tx needs these (rather than GetAll's bare
// values) to build a new op's Pred set when overwriting a key.
func (idx *Index) ConflictIds(obj common.ObjectId, key common.Key, heads []common.ChangeHash) []common.OpId {
	entries := idx.allVisible(obj, key, heads)
	out := make([]common.OpId, len(entries))
	for i, e := range entries {
		out[i] = e.op.ID
	}
	return out
}

// getResult is the cached shape of one Get answer.
type getResult struct {
	value common.Value
	id    common.OpId
	ok    bool
}

// Get returns the winning value at (obj,key,heads), or false if nothing
// is visible there. Results are memoized in an LRU keyed by
// (obj,key,heads-fingerprint): every Apply purges the cache wholesale (a
// change can touch any key's visibility via Succ), so a hit always
// reflects the index as of the query's own heads.
func (idx *Index) Get(obj common.ObjectId, key common.Key, heads []common.ChangeHash) (common.Value, common.OpId, bool) {
	ck := getCacheKey{obj: obj, key: key, live: heads == nil, fp: headsFingerprint(heads)}
	if cached, ok := idx.getCache.Get(ck); ok {
		r := cached.(getResult)
		return r.value, r.id, r.ok
	}

	e, ok := idx.winningOp(obj, key, heads)
	if !ok {
		idx.getCache.Add(ck, getResult{})
		return common.Value{}, common.OpId{}, false
	}
	objIdx := idx.objects[obj]
	v := idx.resolveValue(e, objIdx, key, heads)
	idx.getCache.Add(ck, getResult{value: v, id: e.op.ID, ok: true})
	return v, e.op.ID, true
}

// GetAll returns every visible value at (obj,key,heads) — the conflict
// set spec.md §4.E names.
func (idx *Index) GetAll(obj common.ObjectId, key common.Key, heads []common.ChangeHash) []common.Value {
	objIdx, ok := idx.objects[obj]
	if !ok {
		return nil
	}
	var out []common.Value
	for _, e := range idx.allVisible(obj, key, heads) {
		out = append(out, idx.resolveValue(e, objIdx, key, heads))
	}
	return out
}

// resolveValue materializes an entry's value, folding in visible
// Increment ops when the entry is a counter slot (spec.md §4.E
// Counters: "visible value equals v + sum of deltas over visible
// increments under H").
func (idx *Index) resolveValue(e *entry, objIdx *objectIndex, key common.Key, heads []common.ChangeHash) common.Value {
	if e.op.Action != common.ActionSet || e.op.Value.Kind != common.KindCounter {
		return e.op.Value
	}
	var anc common.HashSet
	if heads != nil {
		anc = idx.resolver.Ancestors(heads)
	}

	// Accumulated as separate non-negative magnitudes rather than a
	// two's-complement uint256.Int, since a long-lived counter may
	// accrue far more increments than fit an int64 partial sum — keeping
	// the running positive and negative totals in 256-bit registers
	// rules out wraparound on either side before the final signed
	// reduction.
	pos, neg := uint256.NewInt(), uint256.NewInt()
	addMagnitude(pos, neg, e.op.Value.Int)
	for _, other := range objIdx.keyEntriesAsc(key) {
		if other.op.Action != common.ActionIncrement || !other.op.Pred.Has(e.op.ID) {
			continue
		}
		if heads == nil || anc.Has(other.change) {
			addMagnitude(pos, neg, other.op.Delta)
		}
	}

	if pos.Cmp(neg) >= 0 {
		diff := uint256.NewInt().Sub(pos, neg)
		return common.CounterValue(int64(diff.Uint64()))
	}
	diff := uint256.NewInt().Sub(neg, pos)
	return common.CounterValue(-int64(diff.Uint64()))
}

// addMagnitude folds a signed delta into pos/neg's running 256-bit
// magnitude totals.
func addMagnitude(pos, neg *uint256.Int, delta int64) {
	m := uint256.NewInt()
	if delta >= 0 {
		m.SetUint64(uint64(delta))
		pos.Add(pos, m)
		return
	}
	m.SetUint64(uint64(-delta))
	neg.Add(neg, m)
}

// Keys returns the map keys whose conflict set under heads is non-empty
// (spec.md §4.E).
func (idx *Index) Keys(obj common.ObjectId, heads []common.ChangeHash) []string {
	objIdx, ok := idx.objects[obj]
	if !ok {
		return nil
	}
	var keys []string
	for key := range objIdx.keyEntries {
		if !key.IsMap {
			continue
		}
		if _, ok := idx.winningOp(obj, key, heads); ok {
			keys = append(keys, key.MapKey)
		}
	}
	sort.Strings(keys)
	return keys
}

// Length returns the count of visible elements in a list/text/table
// object under heads (spec.md §4.E).
func (idx *Index) Length(obj common.ObjectId, heads []common.ChangeHash) int {
	objIdx, ok := idx.objects[obj]
	if !ok || objIdx.children == nil {
		return 0
	}
	if heads == nil {
		return int(objIdx.visible.GetCardinality())
	}
	n := 0
	for _, elemID := range objIdx.elementsPreorder() {
		if _, ok := idx.winningOp(obj, common.ElemKeyOf(elemID), heads); ok {
			n++
		}
	}
	return n
}

// TextAt concatenates the visible character spans of a text object under
// heads, in document order (spec.md §4.E TextAt).
func (idx *Index) TextAt(obj common.ObjectId, heads []common.ChangeHash) string {
	objIdx, ok := idx.objects[obj]
	if !ok || objIdx.children == nil {
		return ""
	}
	var out []byte
	for _, elemID := range objIdx.elementsPreorder() {
		e, ok := idx.winningOp(obj, common.ElemKeyOf(elemID), heads)
		if !ok {
			continue
		}
		v := idx.resolveValue(e, objIdx, common.ElemKeyOf(elemID), heads)
		if v.Kind == common.KindStr {
			out = append(out, v.Str...)
		}
	}
	return string(out)
}

// ElementIds returns the element ids of a list/text/table object in
// document order at heads, for document.go's index<->OpId translation
// (insert-position resolution, patch path addressing).
func (idx *Index) ElementIds(obj common.ObjectId, heads []common.ChangeHash) []common.OpId {
	objIdx, ok := idx.objects[obj]
	if !ok || objIdx.children == nil {
		return nil
	}
	all := objIdx.elementsPreorder()
	var out []common.OpId
	for _, elemID := range all {
		if _, ok := idx.winningOp(obj, common.ElemKeyOf(elemID), heads); ok {
			out = append(out, elemID)
		}
	}
	return out
}

// ObjectKind reports the type of an object, or false if unknown.
func (idx *Index) ObjectKind(obj common.ObjectId) (common.ObjType, bool) {
	oi, ok := idx.objects[obj]
	if !ok {
		return 0, false
	}
	return oi.kind, true
}

// HasObject reports whether obj names a known object.
func (idx *Index) HasObject(obj common.ObjectId) bool {
	_, ok := idx.objects[obj]
	return ok
}
