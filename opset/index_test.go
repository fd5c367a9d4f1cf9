package opset

import (
	"testing"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
)

// fakeResolver lets tests exercise the historical-heads path without a
// real hashgraph.Graph: it reports a fixed ancestor set regardless of
// which heads slice is passed in, which is all Get/GetAll/Length/TextAt
// need from a HeadsResolver.
type fakeResolver struct {
	ancestors common.HashSet
}

func (r *fakeResolver) Ancestors(heads []common.ChangeHash) common.HashSet { return r.ancestors }

func mustActor(t *testing.T, b byte) common.ActorId {
	t.Helper()
	a, err := common.NewActorId([]byte{b})
	if err != nil {
		t.Fatalf("NewActorId: %v", err)
	}
	return a
}

// apply builds a one-change, one-op-per-call change record, encodes it
// (for a real content-addressed hash), and folds it into idx.
func apply(t *testing.T, idx *Index, actor common.ActorId, seq uint64, op common.Op) common.ChangeHash {
	t.Helper()
	if op.Pred.Len() == 0 {
		op.Pred = common.NewOpIdSet()
	}
	c := &change.Change{
		Actor:   actor,
		Seq:     seq,
		StartOp: op.ID.Counter,
		Time:    int64(seq),
		Ops:     []common.Op{op},
	}
	if _, _, err := c.Encode(); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := idx.Apply(c); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return c.Hash
}

func TestMapSetAndConflict(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)
	bob := mustActor(t, 0x02)

	apply(t, idx, alice, 1, common.Op{
		ID:     common.OpId{Counter: 1, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.StrValue("from-alice"),
	})
	apply(t, idx, bob, 1, common.Op{
		ID:     common.OpId{Counter: 1, Actor: bob},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.StrValue("from-bob"),
	})

	v, id, ok := idx.Get(common.RootObject, common.MapKeyOf("k"), nil)
	if !ok {
		t.Fatal("expected a winning value")
	}
	// bob (actor byte 0x02) sorts after alice (0x01) at the same counter,
	// so bob's op wins the (counter,actor) tie-break.
	if id.Actor != bob || v.Str != "from-bob" {
		t.Errorf("got (%v,%q) want bob's op to win", id, v.Str)
	}

	all := idx.GetAll(common.RootObject, common.MapKeyOf("k"), nil)
	if len(all) != 2 {
		t.Fatalf("expected 2-way conflict set, got %d", len(all))
	}

	keys := idx.Keys(common.RootObject, nil)
	if len(keys) != 1 || keys[0] != "k" {
		t.Errorf("Keys: got %v want [k]", keys)
	}
}

func TestMapOverwriteHidesPredecessor(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	apply(t, idx, alice, 1, common.Op{
		ID:     common.OpId{Counter: 1, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.IntValue(1),
	})
	apply(t, idx, alice, 2, common.Op{
		ID:     common.OpId{Counter: 2, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.IntValue(2),
		Pred:   common.NewOpIdSet(common.OpId{Counter: 1, Actor: alice}),
	})

	all := idx.GetAll(common.RootObject, common.MapKeyOf("k"), nil)
	if len(all) != 1 || all[0].Int != 2 {
		t.Errorf("expected only the overwriting value visible, got %v", all)
	}
}

func TestCounterAccumulatesIncrements(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	setID := common.OpId{Counter: 1, Actor: alice}
	apply(t, idx, alice, 1, common.Op{
		ID:     setID,
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("count"),
		Action: common.ActionSet,
		Value:  common.CounterValue(10),
	})
	apply(t, idx, alice, 2, common.Op{
		ID:     common.OpId{Counter: 2, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("count"),
		Action: common.ActionIncrement,
		Delta:  5,
		Pred:   common.NewOpIdSet(setID),
	})
	apply(t, idx, alice, 3, common.Op{
		ID:     common.OpId{Counter: 3, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("count"),
		Action: common.ActionIncrement,
		Delta:  -3,
		Pred:   common.NewOpIdSet(setID),
	})

	v, id, ok := idx.Get(common.RootObject, common.MapKeyOf("count"), nil)
	if !ok {
		t.Fatal("expected counter to be visible")
	}
	if id != setID {
		t.Errorf("Get should report the Set op's id as the winner, got %v", id)
	}
	if v.Kind != common.KindCounter || v.Int != 12 {
		t.Errorf("got counter %v want 12", v)
	}
}

func TestSequenceInsertOrderingAndText(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	textID := common.OpId{Counter: 1, Actor: alice}
	apply(t, idx, alice, 1, common.Op{
		ID:     textID,
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("text"),
		Action: common.ActionMakeText,
	})

	// Insert "a" then "b" then "c", each anchored right after the head
	// (mimicking three sequential same-actor keystrokes).
	var prev common.OpId
	var ids []common.OpId
	for i, ch := range []string{"a", "b", "c"} {
		id := common.OpId{Counter: uint64(2 + i), Actor: alice}
		anchor := common.HeadElem
		if i > 0 {
			anchor = prev
		}
		apply(t, idx, alice, uint64(2+i), common.Op{
			ID:     id,
			Obj:    textID,
			Key:    common.ElemKeyOf(anchor),
			Insert: true,
			Action: common.ActionSet,
			Value:  common.StrValue(ch),
		})
		prev = id
		ids = append(ids, id)
	}

	if got := idx.TextAt(textID, nil); got != "abc" {
		t.Errorf("TextAt: got %q want %q", got, "abc")
	}
	if n := idx.Length(textID, nil); n != 3 {
		t.Errorf("Length: got %d want 3", n)
	}

	elemIds := idx.ElementIds(textID, nil)
	if len(elemIds) != 3 {
		t.Fatalf("ElementIds: got %d want 3", len(elemIds))
	}
	for i, id := range ids {
		if elemIds[i] != id {
			t.Errorf("ElementIds[%d] = %v want %v", i, elemIds[i], id)
		}
	}
}

func TestSequenceConcurrentInsertsAtSameAnchor(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)
	bob := mustActor(t, 0x02)

	textID := common.OpId{Counter: 1, Actor: alice}
	apply(t, idx, alice, 1, common.Op{
		ID:     textID,
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("text"),
		Action: common.ActionMakeText,
	})

	// Both actors insert right after the virtual head concurrently; RGA
	// ordering breaks the tie by descending OpId, so the higher-OpId
	// insert (bob's) lands first in document order.
	apply(t, idx, alice, 2, common.Op{
		ID:     common.OpId{Counter: 2, Actor: alice},
		Obj:    textID,
		Key:    common.ElemKeyOf(common.HeadElem),
		Insert: true,
		Action: common.ActionSet,
		Value:  common.StrValue("A"),
	})
	apply(t, idx, bob, 1, common.Op{
		ID:     common.OpId{Counter: 2, Actor: bob},
		Obj:    textID,
		Key:    common.ElemKeyOf(common.HeadElem),
		Insert: true,
		Action: common.ActionSet,
		Value:  common.StrValue("B"),
	})

	got := idx.TextAt(textID, nil)
	if got != "BA" {
		t.Errorf("TextAt: got %q want %q (bob's higher-actor-byte op wins the tie)", got, "BA")
	}
}

func TestSequenceDeleteHidesElement(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	textID := common.OpId{Counter: 1, Actor: alice}
	apply(t, idx, alice, 1, common.Op{
		ID:     textID,
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("text"),
		Action: common.ActionMakeText,
	})
	elemID := common.OpId{Counter: 2, Actor: alice}
	apply(t, idx, alice, 2, common.Op{
		ID:     elemID,
		Obj:    textID,
		Key:    common.ElemKeyOf(common.HeadElem),
		Insert: true,
		Action: common.ActionSet,
		Value:  common.StrValue("x"),
	})
	if n := idx.Length(textID, nil); n != 1 {
		t.Fatalf("expected 1 visible element before delete, got %d", n)
	}

	apply(t, idx, alice, 3, common.Op{
		ID:     common.OpId{Counter: 3, Actor: alice},
		Obj:    textID,
		Key:    common.ElemKeyOf(elemID),
		Action: common.ActionDelete,
		Pred:   common.NewOpIdSet(elemID),
	})

	if n := idx.Length(textID, nil); n != 0 {
		t.Errorf("expected delete to hide the element from the live bitmap, got Length=%d", n)
	}
	if got := idx.TextAt(textID, nil); got != "" {
		t.Errorf("TextAt after delete: got %q want empty", got)
	}
}

func TestHistoricalHeads(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	h1 := apply(t, idx, alice, 1, common.Op{
		ID:     common.OpId{Counter: 1, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.IntValue(1),
	})
	apply(t, idx, alice, 2, common.Op{
		ID:     common.OpId{Counter: 2, Actor: alice},
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("k"),
		Action: common.ActionSet,
		Value:  common.IntValue(2),
		Pred:   common.NewOpIdSet(common.OpId{Counter: 1, Actor: alice}),
	})

	// Current heads (nil): only the overwrite is visible.
	v, _, ok := idx.Get(common.RootObject, common.MapKeyOf("k"), nil)
	if !ok || v.Int != 2 {
		t.Fatalf("live Get: got (%v,%v) want (2,true)", v, ok)
	}

	// A historical H that only saw the first change: the original value
	// is still visible, since the overwriting change isn't an ancestor.
	idx.SetResolver(&fakeResolver{ancestors: common.NewHashSet(h1)})
	v, _, ok = idx.Get(common.RootObject, common.MapKeyOf("k"), []common.ChangeHash{h1})
	if !ok || v.Int != 1 {
		t.Fatalf("historical Get: got (%v,%v) want (1,true)", v, ok)
	}
}

func TestMarksVisibility(t *testing.T) {
	idx := New(nil)
	alice := mustActor(t, 0x01)

	textID := common.OpId{Counter: 1, Actor: alice}
	apply(t, idx, alice, 1, common.Op{
		ID:     textID,
		Obj:    common.RootObject,
		Key:    common.MapKeyOf("text"),
		Action: common.ActionMakeText,
	})
	start := common.OpId{Counter: 2, Actor: alice}
	apply(t, idx, alice, 2, common.Op{
		ID:     start,
		Obj:    textID,
		Key:    common.ElemKeyOf(common.HeadElem),
		Insert: true,
		Action: common.ActionSet,
		Value:  common.StrValue("x"),
	})
	end := common.OpId{Counter: 3, Actor: alice}
	apply(t, idx, alice, 3, common.Op{
		ID:     end,
		Obj:    textID,
		Key:    common.ElemKeyOf(start),
		Insert: true,
		Action: common.ActionSet,
		Value:  common.StrValue("y"),
	})

	markID := common.OpId{Counter: 4, Actor: alice}
	apply(t, idx, alice, 4, common.Op{
		ID:        markID,
		Obj:       textID,
		Key:       common.ElemKeyOf(start),
		Action:    common.ActionMark,
		Mark:      "bold",
		MarkValue: common.BoolValue(true),
		Expand:    common.ExpandBoth,
		MarkEnd:   end,
	})

	marks := idx.Marks(textID, nil)
	if len(marks) != 1 {
		t.Fatalf("expected 1 active mark, got %d", len(marks))
	}
	if marks[0].Name != "bold" || !marks[0].Value.Bool || marks[0].End != end {
		t.Errorf("unexpected mark: %+v", marks[0])
	}

	apply(t, idx, alice, 5, common.Op{
		ID:     common.OpId{Counter: 5, Actor: alice},
		Obj:    textID,
		Key:    common.ElemKeyOf(start),
		Action: common.ActionUnmark,
		Mark:   "bold",
		Pred:   common.NewOpIdSet(markID),
	})

	marks = idx.Marks(textID, nil)
	if len(marks) != 0 {
		t.Errorf("expected mark to be cancelled after Unmark, got %v", marks)
	}
}
