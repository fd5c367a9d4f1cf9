package document

import (
	"testing"

	"github.com/ledgerwatch/turbocrdt/common"
)

func TestDiffReportsPutAndDel(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	before := alice.Heads()

	if _, err := alice.Update("add fields", 0, func(tx *Tx) error {
		if _, err := tx.Put(common.RootObject, "title", common.StrValue("hi")); err != nil {
			return err
		}
		_, err := tx.Put(common.RootObject, "count", common.IntValue(1))
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	after := alice.Heads()

	patches := alice.Diff(before, after)
	if len(patches) != 2 {
		t.Fatalf("expected 2 patches, got %d: %+v", len(patches), patches)
	}
	for _, p := range patches {
		if p.Kind != PatchPut {
			t.Fatalf("expected all Put patches, got %v", p.Kind)
		}
	}

	before2 := alice.Heads()
	if _, err := alice.Update("delete title", 0, func(tx *Tx) error {
		return tx.Delete(common.RootObject, "title")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after2 := alice.Heads()

	patches2 := alice.Diff(before2, after2)
	if len(patches2) != 1 || patches2[0].Kind != PatchDel {
		t.Fatalf("expected a single Del patch, got %+v", patches2)
	}
}

func TestDiffReportsListInsertAndDel(t *testing.T) {
	alice := New(mustActor(t, 0x01))
	var list common.ObjectId
	if _, err := alice.Update("create list", 0, func(tx *Tx) error {
		obj, err := tx.PutObject(common.RootObject, "xs", common.ObjTypeList)
		list = obj
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	before := alice.Heads()
	if _, err := alice.Update("insert two", 0, func(tx *Tx) error {
		if _, err := tx.Insert(list, 0, common.IntValue(1)); err != nil {
			return err
		}
		_, err := tx.Insert(list, 1, common.IntValue(2))
		return err
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	after := alice.Heads()

	patches := alice.Diff(before, after)
	inserts := 0
	for _, p := range patches {
		if p.Kind == PatchInsert {
			inserts++
		}
	}
	if inserts != 2 {
		t.Fatalf("expected 2 Insert patches, got %d: %+v", inserts, patches)
	}
}
