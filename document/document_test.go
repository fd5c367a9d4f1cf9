package document

import (
	"testing"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

func mustActor(t *testing.T, b byte) common.ActorId {
	t.Helper()
	a, err := common.NewActorId([]byte{b})
	if err != nil {
		t.Fatalf("NewActorId: %v", err)
	}
	return a
}

func TestMapConflictTwoActorsSameKey(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	bob := New(mustActor(t, 0x02))

	if _, err := alice.Update("alice sets title", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "title", common.StrValue("Alice's Doc"))
		return err
	}); err != nil {
		t.Fatalf("alice update: %v", err)
	}
	if _, err := bob.Update("bob sets title", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "title", common.StrValue("Bob's Doc"))
		return err
	}); err != nil {
		t.Fatalf("bob update: %v", err)
	}

	if _, err := alice.Merge(bob); err != nil {
		t.Fatalf("merge: %v", err)
	}

	all := alice.GetAll(common.RootObject, "title")
	if len(all) != 2 {
		t.Fatalf("expected 2-way conflict, got %d values: %v", len(all), all)
	}

	v, ok := alice.Get(common.RootObject, "title")
	if !ok {
		t.Fatalf("expected a winning value")
	}
	if v.Str != "Bob's Doc" {
		t.Fatalf("expected the higher-OpId actor (bob) to win, got %q", v.Str)
	}
}

func TestCounterAccumulatesAcrossActors(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	bob := New(mustActor(t, 0x02))

	if _, err := alice.Update("init counter", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "likes", common.CounterValue(0))
		return err
	}); err != nil {
		t.Fatalf("alice init: %v", err)
	}
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("bob merge alice: %v", err)
	}

	if _, err := alice.Update("alice increments", 0, func(tx *Tx) error {
		return tx.Increment(common.RootObject, "likes", 3)
	}); err != nil {
		t.Fatalf("alice inc: %v", err)
	}
	if _, err := bob.Update("bob increments", 0, func(tx *Tx) error {
		return tx.Increment(common.RootObject, "likes", 4)
	}); err != nil {
		t.Fatalf("bob inc: %v", err)
	}
	if _, err := alice.Merge(bob); err != nil {
		t.Fatalf("merge: %v", err)
	}

	v, ok := alice.Get(common.RootObject, "likes")
	if !ok || v.Int != 7 {
		t.Fatalf("expected counter 7, got %+v (ok=%v)", v, ok)
	}
}

func TestDeleteLoses_SetWinsOverDelete(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	bob := New(mustActor(t, 0x02))

	if _, err := alice.Update("init", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "status", common.StrValue("draft"))
		return err
	}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("bob merge: %v", err)
	}

	if _, err := alice.Update("alice deletes", 0, func(tx *Tx) error {
		return tx.Delete(common.RootObject, "status")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := bob.Update("bob overwrites", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "status", common.StrValue("published"))
		return err
	}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := alice.Merge(bob); err != nil {
		t.Fatalf("merge: %v", err)
	}

	v, ok := alice.Get(common.RootObject, "status")
	if !ok || v.Str != "published" {
		t.Fatalf("expected the concurrent Set to beat the Delete, got %+v (ok=%v)", v, ok)
	}
}

func TestDeleteLoses_SetWinsOverDelete_ListElement(t *testing.T) {
	alice := New(mustActor(t, 0x01))

	var list common.ObjectId
	if _, err := alice.Update("seed", 0, func(tx *Tx) error {
		obj, err := tx.PutObject(common.RootObject, "xs", common.ObjTypeList)
		if err != nil {
			return err
		}
		list = obj
		for i, v := range []string{"a", "b", "c"} {
			if _, err := tx.Insert(obj, i, common.StrValue(v)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bob := New(mustActor(t, 0x02))
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("bob merge: %v", err)
	}

	if _, err := alice.Update("alice deletes index 1", 0, func(tx *Tx) error {
		return tx.DeleteAt(list, 1)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := bob.Update("bob sets index 1", 0, func(tx *Tx) error {
		_, err := tx.SetAt(list, 1, common.StrValue("B"))
		return err
	}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := alice.Merge(bob); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if alice.Length(list) != 3 {
		t.Fatalf("expected the concurrent Set to keep the element alive, got length %d", alice.Length(list))
	}
	v, err := alice.GetAt(list, 1)
	if err != nil || v.Str != "B" {
		t.Fatalf("expected index 1 to be %q (Set beats Delete), got %+v (err=%v)", "B", v, err)
	}
	first, err := alice.GetAt(list, 0)
	if err != nil || first.Str != "a" {
		t.Fatalf("expected index 0 to still be %q, got %+v (err=%v)", "a", first, err)
	}
	last, err := alice.GetAt(list, 2)
	if err != nil || last.Str != "c" {
		t.Fatalf("expected index 2 to still be %q, got %+v (err=%v)", "c", last, err)
	}
}

func TestTextInterleavingConverges(t *testing.T) {
	alice := New(mustActor(t, 0x01))

	var textObj common.ObjectId
	if _, err := alice.Update("create text", 0, func(tx *Tx) error {
		obj, err := tx.PutObject(common.RootObject, "body", common.ObjTypeText)
		if err != nil {
			return err
		}
		textObj = obj
		return tx.Splice(obj, 0, 0, "hello")
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	bob := New(mustActor(t, 0x02))
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("bob merge: %v", err)
	}

	if _, err := alice.Update("alice appends", 0, func(tx *Tx) error {
		return tx.Splice(textObj, 5, 0, " world")
	}); err != nil {
		t.Fatalf("alice splice: %v", err)
	}
	if _, err := bob.Update("bob prepends", 0, func(tx *Tx) error {
		return tx.Splice(textObj, 0, 0, ">> ")
	}); err != nil {
		t.Fatalf("bob splice: %v", err)
	}

	if _, err := alice.Merge(bob); err != nil {
		t.Fatalf("merge a<-b: %v", err)
	}
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("merge b<-a: %v", err)
	}

	aliceText := alice.TextAt(textObj)
	bobText := bob.TextAt(textObj)
	if aliceText != bobText {
		t.Fatalf("documents diverged: alice=%q bob=%q", aliceText, bobText)
	}
	if len(aliceText) != len("hello world")+len(">> ") {
		t.Fatalf("unexpected merged length: %q", aliceText)
	}
}

func TestQuickstartNestedListAndMapMerge(t *testing.T) {
	alice := New(mustActor(t, 0x01))

	var todos common.ObjectId
	if _, err := alice.Update("quickstart", 0, func(tx *Tx) error {
		obj, err := tx.PutObject(common.RootObject, "todos", common.ObjTypeList)
		if err != nil {
			return err
		}
		todos = obj
		item, err := tx.InsertObject(obj, 0, common.ObjTypeMap)
		if err != nil {
			return err
		}
		if _, err := tx.Put(item, "text", common.StrValue("write spec")); err != nil {
			return err
		}
		_, err = tx.Put(item, "done", common.BoolValue(false))
		return err
	}); err != nil {
		t.Fatalf("quickstart: %v", err)
	}

	bob := New(mustActor(t, 0x02))
	if _, err := bob.Merge(alice); err != nil {
		t.Fatalf("bob merge: %v", err)
	}

	if alice.Length(todos) != 1 {
		t.Fatalf("expected 1 todo, got %d", alice.Length(todos))
	}

	child, ok := alice.ChildObjectAt(todos, 0)
	if !ok {
		t.Fatalf("expected todos[0] to be an object")
	}
	v, ok := alice.Get(child, "text")
	if !ok || v.Str != "write spec" {
		t.Fatalf("expected text=write spec, got %+v", v)
	}

	val, err := alice.Materialize(common.RootObject)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	m, ok := val.(map[string]interface{})
	if !ok {
		t.Fatalf("expected root to materialize as a map, got %T", val)
	}
	if _, ok := m["todos"]; !ok {
		t.Fatalf("expected todos key in materialized root: %v", m)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	if _, err := alice.Update("seed", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "k", common.IntValue(42))
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	data, err := alice.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(alice.Actor(), data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v, ok := loaded.Get(common.RootObject, "k")
	if !ok || v.Int != 42 {
		t.Fatalf("expected k=42 after round trip, got %+v (ok=%v)", v, ok)
	}
	if len(loaded.Heads()) != len(alice.Heads()) {
		t.Fatalf("heads mismatch after round trip")
	}
}

func TestIncrementalEqualsFull(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	if _, err := alice.Update("one", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "a", common.IntValue(1))
		return err
	}); err != nil {
		t.Fatalf("one: %v", err)
	}
	if _, err := alice.Update("two", 0, func(tx *Tx) error {
		_, err := tx.Put(common.RootObject, "b", common.IntValue(2))
		return err
	}); err != nil {
		t.Fatalf("two: %v", err)
	}

	full, err := alice.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	incFromScratch, err := alice.SaveIncremental(nil)
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}

	fromFull, err := Load(mustActor(t, 0x09), full)
	if err != nil {
		t.Fatalf("load full: %v", err)
	}

	fromInc := New(mustActor(t, 0x0a))
	loadIncrementalInto(t, fromInc, incFromScratch)

	av, _ := fromFull.Get(common.RootObject, "a")
	bv, _ := fromInc.Get(common.RootObject, "a")
	if av.Int != bv.Int {
		t.Fatalf("full vs incremental disagree on 'a': %+v vs %+v", av, bv)
	}
	if len(fromFull.Heads()) != len(fromInc.Heads()) {
		t.Fatalf("full vs incremental heads length mismatch")
	}
}

// loadIncrementalInto replays an incremental chunk stream (the
// concatenation of single-change containers SaveIncremental emits) into
// doc the way a sync peer applying received changes would.
func loadIncrementalInto(t *testing.T, doc *Document, data []byte) {
	t.Helper()
	for len(data) > 0 {
		_, _, consumed, err := columnar.ReadContainer(data)
		if err != nil {
			t.Fatalf("read incremental container: %v", err)
		}
		c, err := change.Decode(data[:consumed])
		if err != nil {
			t.Fatalf("decode incremental chunk: %v", err)
		}
		if err := doc.Apply(c); err != nil {
			t.Fatalf("apply incremental chunk: %v", err)
		}
		data = data[consumed:]
	}
}

func TestCursorResolvesAcrossMutation(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	var list common.ObjectId
	if _, err := alice.Update("seed", 0, func(tx *Tx) error {
		obj, err := tx.PutObject(common.RootObject, "items", common.ObjTypeList)
		if err != nil {
			return err
		}
		list = obj
		if _, err := tx.Insert(obj, 0, common.StrValue("a")); err != nil {
			return err
		}
		_, err = tx.Insert(obj, 1, common.StrValue("b"))
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cur, err := alice.Cursor(list, 1)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}

	if _, err := alice.Update("prepend", 0, func(tx *Tx) error {
		_, err := tx.Insert(list, 0, common.StrValue("z"))
		return err
	}); err != nil {
		t.Fatalf("prepend: %v", err)
	}

	pos, err := alice.CursorPosition(cur)
	if err != nil {
		t.Fatalf("cursor position: %v", err)
	}
	if pos != 2 {
		t.Fatalf("expected cursor to track element to index 2 after prepend, got %d", pos)
	}
}
