package document

import (
	"fmt"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
)

// Tx is the current transaction spec.md §4.F's verbs buffer ops into. A
// document has at most one open Tx at a time (NewTx fails fast with
// ErrReadOnly otherwise); every verb returns ErrReadOnlyTransaction once
// the Tx has been committed or rolled back, which is also what a caller
// sees if it tries to keep using a Tx handle after "closing" it — the
// closest thing this API has to a "nested transaction" mistake.
type Tx struct {
	doc      *Document
	resolved bool

	ops         []common.Op
	nextCounter uint64
	baseHeads   []common.ChangeHash

	// localWinner/localElemIds/localKind let later verbs in the same Tx
	// see the effect of earlier ones before they're applied to the real
	// index at Commit — e.g. building a list object and inserting several
	// elements into it within one transaction (spec.md §8 quickstart
	// scenario) needs each Insert to anchor off the previous one's new
	// element id, and a key written twice in one Tx must pred-chain onto
	// its own earlier write rather than whatever the index last saw.
	localWinner  map[txKey]common.OpId
	localElemIds map[common.ObjectId][]common.OpId
	localKind    map[common.ObjectId]common.ObjType
}

type txKey struct {
	obj common.ObjectId
	key common.Key
}

// NewTx opens a transaction against d, locking it exclusively until
// Commit or Rollback resolves it (spec.md §5: mutations are serialized by
// an exclusive lock). A second call while one is still open returns
// ErrReadOnly immediately rather than blocking, mirroring the teacher's
// bolt.DB.Update(func(tx *bolt.Tx) error {...}) pattern (ethdb/
// memory_database.go) but surfacing the "nested transaction" rejection
// spec.md §4.F names instead of bolt's own deadlock-on-reentry behavior.
func (d *Document) NewTx() (*Tx, error) {
	d.txGuard.Lock()
	if d.txOpen {
		d.txGuard.Unlock()
		return nil, ErrReadOnly
	}
	d.txOpen = true
	d.txGuard.Unlock()

	d.mu.Lock()
	return &Tx{
		doc:          d,
		nextCounter:  d.clock.Get(d.actor) + 1,
		baseHeads:    d.graph.Heads(),
		localWinner:  map[txKey]common.OpId{},
		localElemIds: map[common.ObjectId][]common.OpId{},
		localKind:    map[common.ObjectId]common.ObjType{},
	}, nil
}

// Update opens a Tx, runs fn, and commits on success or rolls back on
// error or panic — the ergonomic wrapper the bolt-style Update pattern
// exists to provide, so callers don't have to remember to resolve a Tx on
// every exit path.
func (d *Document) Update(message string, time int64, fn func(*Tx) error) (common.ChangeHash, error) {
	tx, err := d.NewTx()
	if err != nil {
		return common.ChangeHash{}, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return common.ChangeHash{}, err
	}
	hash, err := tx.Commit(message, time)
	if err != nil {
		return common.ChangeHash{}, err
	}
	committed = true
	return hash, nil
}

func (tx *Tx) checkOpen() error {
	if tx.resolved {
		return ErrReadOnlyTransaction
	}
	return nil
}

func (tx *Tx) nextOpId() common.OpId {
	id := common.OpId{Counter: tx.nextCounter, Actor: tx.doc.actor}
	tx.nextCounter++
	return id
}

// kindOf resolves obj's kind, consulting objects this Tx itself created
// before falling back to the committed index.
func (tx *Tx) kindOf(obj common.ObjectId) (common.ObjType, error) {
	if obj.IsRoot() {
		return common.ObjTypeMap, nil
	}
	if k, ok := tx.localKind[obj]; ok {
		return k, nil
	}
	if k, ok := tx.doc.index.ObjectKind(obj); ok {
		return k, nil
	}
	return 0, &InvalidObjectIdError{Obj: obj.String()}
}

// predFor returns the Pred set a new op at (obj,key) must carry: the
// conflict set currently visible at that key, or — if this Tx already
// wrote that key itself — just its own prior write, since within one
// actor's transaction each write to a key strictly supersedes the last.
func (tx *Tx) predFor(obj common.ObjectId, key common.Key) common.HashSetOpId {
	if id, ok := tx.localWinner[txKey{obj, key}]; ok {
		return common.NewOpIdSet(id)
	}
	return common.NewOpIdSet(tx.doc.index.ConflictIds(obj, key, nil)...)
}

func (tx *Tx) setWinner(obj common.ObjectId, key common.Key, id common.OpId) {
	tx.localWinner[txKey{obj, key}] = id
}

// elemIds returns this Tx's current view of obj's visible element order,
// seeding it from the committed index the first time obj is touched.
func (tx *Tx) elemIds(obj common.ObjectId) []common.OpId {
	if ids, ok := tx.localElemIds[obj]; ok {
		return ids
	}
	ids := append([]common.OpId{}, tx.doc.index.ElementIds(obj, nil)...)
	tx.localElemIds[obj] = ids
	return ids
}

func (tx *Tx) requireSequence(obj common.ObjectId) error {
	kind, err := tx.kindOf(obj)
	if err != nil {
		return err
	}
	if !kind.IsSequence() {
		return &WrongObjectKindError{Obj: obj.String(), Want: "list/text/table", Have: kind.String()}
	}
	return nil
}

func (tx *Tx) requireMap(obj common.ObjectId) error {
	kind, err := tx.kindOf(obj)
	if err != nil {
		return err
	}
	if kind != common.ObjTypeMap && kind != common.ObjTypeTable {
		return &WrongObjectKindError{Obj: obj.String(), Want: "map/table", Have: kind.String()}
	}
	return nil
}

// Put sets a map/table key to a scalar value (spec.md §4.F put).
func (tx *Tx) Put(obj common.ObjectId, key string, value common.Value) (common.OpId, error) {
	if err := tx.checkOpen(); err != nil {
		return common.OpId{}, err
	}
	if err := tx.requireMap(obj); err != nil {
		return common.OpId{}, err
	}
	k := common.MapKeyOf(key)
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: k,
		Action: common.ActionSet, Value: value,
		Pred: tx.predFor(obj, k),
	}
	tx.ops = append(tx.ops, op)
	tx.setWinner(obj, k, op.ID)
	return op.ID, nil
}

// PutObject creates a nested map/list/text/table at a map/table key
// (spec.md §4.F put_object).
func (tx *Tx) PutObject(obj common.ObjectId, key string, kind common.ObjType) (common.ObjectId, error) {
	if err := tx.checkOpen(); err != nil {
		return common.OpId{}, err
	}
	if err := tx.requireMap(obj); err != nil {
		return common.ObjectId{}, err
	}
	k := common.MapKeyOf(key)
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: k,
		Action: makeAction(kind),
		Pred:   tx.predFor(obj, k),
	}
	tx.ops = append(tx.ops, op)
	tx.setWinner(obj, k, op.ID)
	tx.localKind[op.ID] = kind
	return op.ID, nil
}

// Insert adds a scalar element at logical index, shifting later elements
// right (spec.md §4.F insert / §4.E RGA rule).
func (tx *Tx) Insert(obj common.ObjectId, index int, value common.Value) (common.OpId, error) {
	if err := tx.checkOpen(); err != nil {
		return common.OpId{}, err
	}
	if err := tx.requireSequence(obj); err != nil {
		return common.OpId{}, err
	}
	anchor, err := tx.anchorFor(obj, index)
	if err != nil {
		return common.OpId{}, err
	}
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: common.ElemKeyOf(anchor), Insert: true,
		Action: common.ActionSet, Value: value,
		Pred: common.NewOpIdSet(),
	}
	tx.ops = append(tx.ops, op)
	tx.insertLocal(obj, index, op.ID)
	return op.ID, nil
}

// InsertObject adds a nested object element at logical index (spec.md
// §4.F insert_object).
func (tx *Tx) InsertObject(obj common.ObjectId, index int, kind common.ObjType) (common.ObjectId, error) {
	if err := tx.checkOpen(); err != nil {
		return common.OpId{}, err
	}
	if err := tx.requireSequence(obj); err != nil {
		return common.OpId{}, err
	}
	anchor, err := tx.anchorFor(obj, index)
	if err != nil {
		return common.OpId{}, err
	}
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: common.ElemKeyOf(anchor), Insert: true,
		Action: makeAction(kind),
		Pred:   common.NewOpIdSet(),
	}
	tx.ops = append(tx.ops, op)
	tx.insertLocal(obj, index, op.ID)
	tx.localKind[op.ID] = kind
	return op.ID, nil
}

func (tx *Tx) anchorFor(obj common.ObjectId, index int) (common.OpId, error) {
	ids := tx.elemIds(obj)
	if index < 0 || index > len(ids) {
		return common.OpId{}, &OutOfBoundsError{Index: index, Length: len(ids)}
	}
	if index == 0 {
		return common.HeadElem, nil
	}
	return ids[index-1], nil
}

func (tx *Tx) insertLocal(obj common.ObjectId, index int, id common.OpId) {
	ids := tx.elemIds(obj)
	out := make([]common.OpId, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	tx.localElemIds[obj] = out
}

// SetAt overwrites an existing sequence element's value — the "put" verb
// for lists/text (spec.md §4.F put applied to a sequence key).
func (tx *Tx) SetAt(obj common.ObjectId, index int, value common.Value) (common.OpId, error) {
	if err := tx.checkOpen(); err != nil {
		return common.OpId{}, err
	}
	if err := tx.requireSequence(obj); err != nil {
		return common.OpId{}, err
	}
	ids := tx.elemIds(obj)
	if index < 0 || index >= len(ids) {
		return common.OpId{}, &OutOfBoundsError{Index: index, Length: len(ids)}
	}
	elemID := ids[index]
	k := common.ElemKeyOf(elemID)
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: k,
		Action: common.ActionSet, Value: value,
		Pred: tx.predFor(obj, k),
	}
	tx.ops = append(tx.ops, op)
	tx.setWinner(obj, k, op.ID)
	return op.ID, nil
}

// Delete removes a map/table key (spec.md §4.F delete). A key with no
// currently visible value is a silent no-op: no op is buffered, since an
// empty Pred delete would have nothing to shadow.
func (tx *Tx) Delete(obj common.ObjectId, key string) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	if err := tx.requireMap(obj); err != nil {
		return err
	}
	k := common.MapKeyOf(key)
	pred := tx.predFor(obj, k)
	if pred.Len() == 0 {
		return nil
	}
	op := common.Op{ID: tx.nextOpId(), Obj: obj, Key: k, Action: common.ActionDelete, Pred: pred}
	tx.ops = append(tx.ops, op)
	delete(tx.localWinner, txKey{obj, k})
	return nil
}

// DeleteAt removes a sequence element by logical index (spec.md §4.F
// delete applied to a list/text).
func (tx *Tx) DeleteAt(obj common.ObjectId, index int) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	if err := tx.requireSequence(obj); err != nil {
		return err
	}
	ids := tx.elemIds(obj)
	if index < 0 || index >= len(ids) {
		return &OutOfBoundsError{Index: index, Length: len(ids)}
	}
	elemID := ids[index]
	k := common.ElemKeyOf(elemID)
	pred := tx.predFor(obj, k)
	if pred.Len() > 0 {
		op := common.Op{ID: tx.nextOpId(), Obj: obj, Key: k, Action: common.ActionDelete, Pred: pred}
		tx.ops = append(tx.ops, op)
	}
	tx.localElemIds[obj] = append(append([]common.OpId{}, ids[:index]...), ids[index+1:]...)
	delete(tx.localWinner, txKey{obj, k})
	return nil
}

// Increment amends a counter slot by delta (spec.md §4.E Counters). obj,
// key must currently resolve to a Set(counter,...) slot.
func (tx *Tx) Increment(obj common.ObjectId, key string, delta int64) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	if err := tx.requireMap(obj); err != nil {
		return err
	}
	k := common.MapKeyOf(key)
	setID, ok := tx.localWinner[txKey{obj, k}]
	if !ok {
		v, id, found := tx.doc.index.Get(obj, k, nil)
		if !found || v.Kind != common.KindCounter {
			return &WrongObjectKindError{Obj: obj.String(), Want: "counter", Have: "absent or non-counter"}
		}
		setID = id
	}
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: k,
		Action: common.ActionIncrement, Delta: delta,
		Pred: common.NewOpIdSet(setID),
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// Splice deletes `del` elements starting at `start` then inserts the
// runes of str at that position (spec.md §4.F splice). Only meaningful
// for text objects — it is the character-level edit verb Mark/Unmark's
// ranges are defined against.
func (tx *Tx) Splice(obj common.ObjectId, start, del int, str string) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	kind, err := tx.kindOf(obj)
	if err != nil {
		return err
	}
	if kind != common.ObjTypeText {
		return &WrongObjectKindError{Obj: obj.String(), Want: "text", Have: kind.String()}
	}
	for i := 0; i < del; i++ {
		if err := tx.DeleteAt(obj, start); err != nil {
			return err
		}
	}
	pos := start
	for _, r := range str {
		if _, err := tx.Insert(obj, pos, common.StrValue(string(r))); err != nil {
			return err
		}
		pos++
	}
	return nil
}

// Mark applies name->value over the half-open character range [start,end)
// of a text object with the given expansion policy (spec.md §4.E Marks).
func (tx *Tx) Mark(obj common.ObjectId, start, end int, name string, value common.Value, expand common.ExpandMark) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	kind, err := tx.kindOf(obj)
	if err != nil {
		return err
	}
	if kind != common.ObjTypeText {
		return &WrongObjectKindError{Obj: obj.String(), Want: "text", Have: kind.String()}
	}
	if start < 0 || end <= start {
		return &OutOfBoundsError{Index: start, Length: end}
	}
	ids := tx.elemIds(obj)
	if end > len(ids) {
		return &OutOfBoundsError{Index: end, Length: len(ids)}
	}
	startID, endID := ids[start], ids[end-1]
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: common.ElemKeyOf(startID),
		Action: common.ActionMark, Mark: name, MarkValue: value, Expand: expand, MarkEnd: endID,
		Pred: common.NewOpIdSet(),
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// Unmark cancels the active mark named name covering exactly [start,end)
// (spec.md §4.E). There must be a currently visible Mark with that exact
// name and range, found the same way document.Marks reports it.
func (tx *Tx) Unmark(obj common.ObjectId, start, end int, name string) error {
	if err := tx.checkOpen(); err != nil {
		return err
	}
	ids := tx.elemIds(obj)
	if start < 0 || end <= start || end > len(ids) {
		return &OutOfBoundsError{Index: start, Length: len(ids)}
	}
	startID, endID := ids[start], ids[end-1]

	var target common.OpId
	found := false
	for _, span := range tx.doc.index.Marks(obj, nil) {
		if span.Name == name && span.Start == startID && span.End == endID {
			target, found = span.ID, true
			break
		}
	}
	if !found {
		return fmt.Errorf("document: no active mark %q over that range", name)
	}
	op := common.Op{
		ID: tx.nextOpId(), Obj: obj, Key: common.ElemKeyOf(startID),
		Action: common.ActionUnmark, Mark: name, MarkEnd: endID,
		Pred: common.NewOpIdSet(target),
	}
	tx.ops = append(tx.ops, op)
	return nil
}

// Commit seals the buffered ops into a Change and applies it (spec.md
// §4.F commit). An empty transaction commits nothing and returns the
// zero hash, matching "commit(...) -> hash | none".
func (tx *Tx) Commit(message string, time int64) (common.ChangeHash, error) {
	if err := tx.checkOpen(); err != nil {
		return common.ChangeHash{}, err
	}
	tx.resolved = true
	defer tx.doc.endTx()

	if len(tx.ops) == 0 {
		return common.ChangeHash{}, nil
	}
	c := &change.Change{
		Actor:   tx.doc.actor,
		Seq:     tx.doc.seqByActor[tx.doc.actor] + 1,
		StartOp: tx.ops[0].ID.Counter,
		Time:    time,
		Message: message,
		Deps:    tx.baseHeads,
		Ops:     tx.ops,
	}
	if _, _, err := c.Encode(); err != nil {
		return common.ChangeHash{}, err
	}
	if err := tx.doc.applyLocked(c); err != nil {
		return common.ChangeHash{}, err
	}
	return c.Hash, nil
}

// Rollback discards every buffered op, returning the count discarded
// (spec.md §4.F rollback).
func (tx *Tx) Rollback() int {
	if tx.resolved {
		return 0
	}
	tx.resolved = true
	n := len(tx.ops)
	tx.doc.endTx()
	return n
}

func (d *Document) endTx() {
	d.mu.Unlock()
	d.txGuard.Lock()
	d.txOpen = false
	d.txGuard.Unlock()
}

func makeAction(kind common.ObjType) common.OpAction {
	switch kind {
	case common.ObjTypeList:
		return common.ActionMakeList
	case common.ObjTypeText:
		return common.ActionMakeText
	case common.ObjTypeTable:
		return common.ActionMakeTable
	default:
		return common.ActionMakeMap
	}
}
