// Package document is the top-level API (spec.md §4.F): a single
// document's transaction verbs, reads at arbitrary heads, save/load,
// fork/merge, and patch generation, built on hashgraph's causal DAG and
// opset's per-object index.
package document

import (
	"fmt"
	"sync"

	"github.com/inconshreveable/log15"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/hashgraph"
	"github.com/ledgerwatch/turbocrdt/internal/xlog"
	"github.com/ledgerwatch/turbocrdt/opset"
)

// ChangeInfo is one entry of Log's topological change listing (SPEC_FULL
// §3: change metadata accessors).
type ChangeInfo struct {
	Hash    common.ChangeHash
	Actor   common.ActorId
	Seq     uint64
	Time    int64
	Message string
	Deps    []common.ChangeHash
}

// Document is one CRDT document: its causal history, its materialized
// op-set index, and the local actor identity new transactions commit
// under. A single Document is not internally parallel (spec.md §5):
// mu serializes every mutation, and read methods take the read lock so
// they may run concurrently with each other but never with a writer —
// the same split the teacher's ObjectDatabase gives its read and batch
// write paths.
type Document struct {
	mu sync.RWMutex

	actor common.ActorId

	graph *hashgraph.Graph
	index *opset.Index

	// clock and seqByActor track, per actor, the highest op counter and
	// change seq applied so far — the frontier new local ops and changes
	// must be numbered past, and the version-vector SPEC_FULL §3 promotes
	// to public API via common.Clock.
	clock      common.Clock
	seqByActor map[common.ActorId]uint64

	// txGuard/txOpen forbid a second transaction from starting while one
	// is already open (spec.md §4.F: "ReadOnly on nested transactions").
	// txGuard is a separate, short-held lock from mu itself so NewTx can
	// fail fast with ErrReadOnly instead of blocking on mu for the
	// duration of the open transaction.
	txGuard sync.Mutex
	txOpen  bool

	log log15.Logger
}

// New creates an empty document that will commit local changes under
// actor.
func New(actor common.ActorId) *Document {
	d := &Document{
		actor:      actor,
		index:      opset.New(nil),
		clock:      common.NewClock(),
		seqByActor: map[common.ActorId]uint64{},
		log:        xlog.New("actor", actor.String()),
	}
	d.graph = hashgraph.New(d.index)
	d.index.SetResolver(d.graph)
	return d
}

// Actor returns the local actor identity this document commits under.
func (d *Document) Actor() common.ActorId { return d.actor }

// Heads returns the current frontier (spec.md overview).
func (d *Document) Heads() []common.ChangeHash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.Heads()
}

// Clock returns a copy of the document's per-actor version vector
// (SPEC_FULL §3: "Clock promoted to a small public API").
func (d *Document) Clock() common.Clock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.clock.Clone()
}

// MissingDeps returns the dependency hashes any queued-but-unapplied
// change is still waiting on.
func (d *Document) MissingDeps() []common.ChangeHash {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.MissingDeps()
}

// recordApplied advances the clock and per-actor seq counters past a
// change that has just been folded into the graph, whether it arrived by
// local commit, Merge, or Apply. Callers hold d.mu.
func (d *Document) recordApplied(c *change.Change) {
	for _, op := range c.Ops {
		d.clock.Advance(op.ID.Actor, op.ID.Counter)
	}
	if c.Seq > d.seqByActor[c.Actor] {
		d.seqByActor[c.Actor] = c.Seq
	}
}

// Apply folds one already-encoded change into the document (e.g. received
// from a sync peer or loaded from a chunk), applying hashgraph's
// deterministic fixpoint and hashing rules. A duplicate is silently
// ignored (spec.md §7: "Sync ignores duplicate changes silently"); a
// change with unsatisfied deps is queued and reported via
// *MissingDepsError.
func (d *Document) Apply(c *change.Change) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyLocked(c)
}

func (d *Document) applyLocked(c *change.Change) error {
	err := d.graph.Add(c)
	switch e := err.(type) {
	case nil:
		d.recordApplied(c)
		return nil
	case *hashgraph.MissingDepsError:
		hashes := make([]string, len(e.Hashes))
		for i, h := range e.Hashes {
			hashes[i] = h.String()
		}
		return &MissingDepsError{Hashes: hashes}
	}
	if err == hashgraph.ErrDuplicateChange {
		return nil
	}
	return err
}

// Merge applies every change other has that self is missing (spec.md
// §4.F). It returns the number of changes newly applied. Merge is
// commutative in the sense spec.md §5 requires: merging a into b and b
// into a yield documents equal under materialization, since both sides
// end up with the union of applied changes and materialization depends
// only on that set plus the deterministic op-set resolution rules.
func (d *Document) Merge(other *Document) (int, error) {
	other.mu.RLock()
	theirHeads := other.graph.Heads()
	var pending []*change.Change
	func() {
		d.mu.RLock()
		defer d.mu.RUnlock()
		pending = other.graph.ChangesBetween(d.graph.Heads(), theirHeads)
	}()
	other.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range pending {
		if d.graph.IsApplied(c.Hash) {
			continue
		}
		if err := d.applyLocked(c); err != nil {
			if _, ok := err.(*MissingDepsError); ok {
				// A dep outside [d.heads, their.heads) (e.g. the peer
				// forked further back than our own history reaches) is
				// left queued; runFixpoint will pick it up once that dep
				// arrives via a later Merge/Apply.
				continue
			}
			return n, err
		}
		n++
	}
	d.log.Debug("merge applied changes", "count", n, "from", theirHeads)
	return n, nil
}

// Fork returns an independent document containing every change that is an
// ancestor of heads (the current heads if none given), committing under
// newActor from now on. spec.md §4.F's fork(heads?) takes no actor
// parameter in the abstract model, but two live documents sharing one
// actor id would violate the per-actor seq monotonicity invariant the
// moment both committed again — so this port requires the clone's actor
// explicitly, the same deviation automerge-the-library itself makes
// (`Doc.fork(actor?)`). §9 sanctions the fallback used here: "implementations
// without structural sharing must at least provide fork by
// serialize/deserialize as a correctness baseline" — this one doesn't yet
// do copy-on-write B-tree sharing, so Fork re-derives the clone from a
// scoped Save/Load round trip.
func (d *Document) Fork(newActor common.ActorId, heads ...common.ChangeHash) (*Document, error) {
	d.mu.RLock()
	data, err := d.saveScopedLocked(heads)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return Load(newActor, data)
}

// ObjectKind reports the kind of obj, or *InvalidObjectIdError if unknown.
func (d *Document) ObjectKind(obj common.ObjectId) (common.ObjType, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, ok := d.index.ObjectKind(obj)
	if !ok {
		return 0, &InvalidObjectIdError{Obj: obj.String()}
	}
	return k, nil
}

// Get returns the winning value at a map key (spec.md §4.E Get).
func (d *Document) Get(obj common.ObjectId, key string, heads ...common.ChangeHash) (common.Value, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, _, ok := d.index.Get(obj, common.MapKeyOf(key), heads)
	return v, ok
}

// GetAll returns the conflict set at a map key (spec.md §4.E GetAll).
func (d *Document) GetAll(obj common.ObjectId, key string, heads ...common.ChangeHash) []common.Value {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.GetAll(obj, common.MapKeyOf(key), heads)
}

// Keys returns the visible map keys of obj (spec.md §4.E Keys).
func (d *Document) Keys(obj common.ObjectId, heads ...common.ChangeHash) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Keys(obj, heads)
}

// Length returns the count of visible elements in a list/text/table
// object (spec.md §4.E Length).
func (d *Document) Length(obj common.ObjectId, heads ...common.ChangeHash) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Length(obj, heads)
}

// TextAt returns the concatenated visible characters of a text object
// (spec.md §4.E TextAt).
func (d *Document) TextAt(obj common.ObjectId, heads ...common.ChangeHash) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.TextAt(obj, heads)
}

// Marks returns the active formatting spans of a text object (spec.md
// §4.E marks).
func (d *Document) Marks(obj common.ObjectId, heads ...common.ChangeHash) []opset.MarkSpan {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.index.Marks(obj, heads)
}

// ChildObject resolves a map key to the object it references, if the
// winning value there is itself an object rather than a scalar — the
// traversal step a path-addressed CLI needs and that common.Value alone
// can't answer, since a nested object's identity is the OpId of the
// entry that created it, not anything Value carries.
func (d *Document) ChildObject(obj common.ObjectId, key string) (common.ObjectId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, id, ok := d.index.Get(obj, common.MapKeyOf(key), nil)
	if !ok {
		return common.ObjectId{}, false
	}
	_, isObj := d.index.ObjectKind(id)
	return id, isObj
}

// ChildObjectAt is ChildObject for a sequence element addressed by index.
func (d *Document) ChildObjectAt(obj common.ObjectId, index int) (common.ObjectId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.index.ElementIds(obj, nil)
	if index < 0 || index >= len(ids) {
		return common.ObjectId{}, false
	}
	_, id, ok := d.index.Get(obj, common.ElemKeyOf(ids[index]), nil)
	if !ok {
		return common.ObjectId{}, false
	}
	_, isObj := d.index.ObjectKind(id)
	return id, isObj
}

// GetAt returns the winning value of a sequence element by index.
func (d *Document) GetAt(obj common.ObjectId, index int, heads ...common.ChangeHash) (common.Value, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	elemID, err := d.elemAtLocked(obj, index, heads)
	if err != nil {
		return common.Value{}, err
	}
	v, _, _ := d.index.Get(obj, common.ElemKeyOf(elemID), heads)
	return v, nil
}

// elemAtLocked resolves a logical sequence index to the element id
// visible at it, bounds-checked. Callers hold d.mu.
func (d *Document) elemAtLocked(obj common.ObjectId, index int, heads []common.ChangeHash) (common.OpId, error) {
	ids := d.index.ElementIds(obj, heads)
	if index < 0 || index >= len(ids) {
		return common.OpId{}, &OutOfBoundsError{Index: index, Length: len(ids)}
	}
	return ids[index], nil
}

// Materialize recursively reconstructs obj (and its descendants) as plain
// Go values: map[string]interface{} for maps, []interface{} for
// list/text/table, and the scalar payload for everything else — the
// explicit, non-proxy read surface spec.md §9 calls for in place of a
// host-language dynamic facade.
func (d *Document) Materialize(obj common.ObjectId, heads ...common.ChangeHash) (interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.materializeLocked(obj, heads)
}

func (d *Document) materializeLocked(obj common.ObjectId, heads []common.ChangeHash) (interface{}, error) {
	kind, ok := d.index.ObjectKind(obj)
	if !ok {
		return nil, &InvalidObjectIdError{Obj: obj.String()}
	}
	switch kind {
	case common.ObjTypeMap, common.ObjTypeTable:
		out := make(map[string]interface{})
		for _, key := range d.index.Keys(obj, heads) {
			v, id, ok := d.index.Get(obj, common.MapKeyOf(key), heads)
			if !ok {
				continue
			}
			out[key] = d.resolveMaterialValue(v, id, heads)
		}
		return out, nil
	case common.ObjTypeText:
		return d.index.TextAt(obj, heads), nil
	case common.ObjTypeList:
		ids := d.index.ElementIds(obj, heads)
		out := make([]interface{}, 0, len(ids))
		for _, elemID := range ids {
			v, _, ok := d.index.Get(obj, common.ElemKeyOf(elemID), heads)
			if !ok {
				continue
			}
			out = append(out, d.resolveMaterialValue(v, elemID, heads))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("document: unknown object kind %v", kind)
	}
}

// resolveMaterialValue expands a cursor/nested-object slot into its
// materialized form; a plain scalar is returned as its native Go value.
func (d *Document) resolveMaterialValue(v common.Value, winningOp common.OpId, heads []common.ChangeHash) interface{} {
	if _, ok := d.index.ObjectKind(winningOp); ok {
		nested, err := d.materializeLocked(winningOp, heads)
		if err == nil {
			return nested
		}
	}
	switch v.Kind {
	case common.KindNull:
		return nil
	case common.KindBool:
		return v.Bool
	case common.KindInt, common.KindTimestamp, common.KindCounter:
		return v.Int
	case common.KindUint:
		return v.Uint
	case common.KindFloat64:
		return v.Float
	case common.KindStr:
		return v.Str
	case common.KindBytes:
		return v.Bytes
	case common.KindCursor:
		return v.Cur.String()
	default:
		return nil
	}
}

// AllChanges returns every applied change that is an ancestor of heads (the
// current heads if none given), in topological order — the candidate set
// the sync package's have/need negotiation draws from.
func (d *Document) AllChanges(heads ...common.ChangeHash) []*change.Change {
	d.mu.RLock()
	defer d.mu.RUnlock()
	from := heads
	if len(from) == 0 {
		from = d.graph.Heads()
	}
	return d.graph.ChangesBetween(nil, from)
}

// HasChange reports whether hash has already been folded into the graph.
func (d *Document) HasChange(hash common.ChangeHash) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.graph.IsApplied(hash)
}

// Log lists every applied change in topological order (SPEC_FULL §3:
// change metadata accessors).
func (d *Document) Log(heads ...common.ChangeHash) []ChangeInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	from := heads
	if len(from) == 0 {
		from = d.graph.Heads()
	}
	changes := d.graph.ChangesBetween(nil, from)
	out := make([]ChangeInfo, len(changes))
	for i, c := range changes {
		out[i] = ChangeInfo{
			Hash:    c.Hash,
			Actor:   c.Actor,
			Seq:     c.Seq,
			Time:    c.Time,
			Message: c.Message,
			Deps:    c.Deps,
		}
	}
	return out
}
