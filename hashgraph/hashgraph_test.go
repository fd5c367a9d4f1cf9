package hashgraph

import (
	"testing"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
)

type recordingApplier struct {
	applied []common.ChangeHash
}

func (a *recordingApplier) Apply(c *change.Change) error {
	a.applied = append(a.applied, c.Hash)
	return nil
}

func mustActor(t *testing.T, b byte) common.ActorId {
	t.Helper()
	a, err := common.NewActorId([]byte{b})
	if err != nil {
		t.Fatalf("NewActorId: %v", err)
	}
	return a
}

func buildChange(t *testing.T, actor common.ActorId, seq, startOp uint64, deps []common.ChangeHash) *change.Change {
	t.Helper()
	c := &change.Change{
		Actor:   actor,
		Seq:     seq,
		StartOp: startOp,
		Time:    int64(seq),
		Deps:    deps,
		Ops: []common.Op{
			{
				ID:     common.OpId{Counter: startOp, Actor: actor},
				Obj:    common.RootObject,
				Key:    common.MapKeyOf("k"),
				Action: common.ActionSet,
				Value:  common.IntValue(int64(seq)),
				Pred:   common.NewOpIdSet(),
			},
		},
	}
	if _, _, err := c.Encode(); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return c
}

func TestGraphAppliesInOrder(t *testing.T) {
	actor := mustActor(t, 0x01)
	applier := &recordingApplier{}
	g := New(applier)

	c1 := buildChange(t, actor, 1, 1, nil)
	if err := g.Add(c1); err != nil {
		t.Fatalf("Add c1: %v", err)
	}

	c2 := buildChange(t, actor, 2, 2, []common.ChangeHash{c1.Hash})
	if err := g.Add(c2); err != nil {
		t.Fatalf("Add c2: %v", err)
	}

	heads := g.Heads()
	if len(heads) != 1 || heads[0] != c2.Hash {
		t.Errorf("expected heads=[c2], got %v", heads)
	}
	if len(applier.applied) != 2 {
		t.Fatalf("expected 2 applied changes, got %d", len(applier.applied))
	}
}

func TestGraphQueuesOnMissingDeps(t *testing.T) {
	actor := mustActor(t, 0x01)
	applier := &recordingApplier{}
	g := New(applier)

	c1 := buildChange(t, actor, 1, 1, nil)
	c2 := buildChange(t, actor, 2, 2, []common.ChangeHash{c1.Hash})

	err := g.Add(c2)
	var missingErr *MissingDepsError
	if err == nil {
		t.Fatalf("expected MissingDepsError, got nil")
	}
	if me, ok := err.(*MissingDepsError); !ok {
		t.Fatalf("expected *MissingDepsError, got %T", err)
	} else {
		missingErr = me
	}
	if len(missingErr.Hashes) != 1 || missingErr.Hashes[0] != c1.Hash {
		t.Errorf("unexpected missing deps: %v", missingErr.Hashes)
	}

	missing := g.MissingDeps()
	if len(missing) != 1 || missing[0] != c1.Hash {
		t.Errorf("Graph.MissingDeps: got %v want [%s]", missing, c1.Hash)
	}

	if err := g.Add(c1); err != nil {
		t.Fatalf("Add c1: %v", err)
	}
	if len(g.MissingDeps()) != 0 {
		t.Errorf("expected no missing deps after fixpoint, got %v", g.MissingDeps())
	}
	if !g.IsApplied(c2.Hash) {
		t.Errorf("expected c2 applied after its dep landed")
	}
}

func TestGraphDuplicateChange(t *testing.T) {
	actor := mustActor(t, 0x01)
	g := New(&recordingApplier{})
	c1 := buildChange(t, actor, 1, 1, nil)
	if err := g.Add(c1); err != nil {
		t.Fatalf("Add c1: %v", err)
	}
	if err := g.Add(c1); err != ErrDuplicateChange {
		t.Errorf("got %v want ErrDuplicateChange", err)
	}
}

func TestChangesBetween(t *testing.T) {
	actor := mustActor(t, 0x01)
	g := New(&recordingApplier{})
	c1 := buildChange(t, actor, 1, 1, nil)
	c2 := buildChange(t, actor, 2, 2, []common.ChangeHash{c1.Hash})
	c3 := buildChange(t, actor, 3, 3, []common.ChangeHash{c2.Hash})
	for _, c := range []*change.Change{c1, c2, c3} {
		if err := g.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	between := g.ChangesBetween([]common.ChangeHash{c1.Hash}, []common.ChangeHash{c3.Hash})
	if len(between) != 2 || between[0].Hash != c2.Hash || between[1].Hash != c3.Hash {
		t.Errorf("unexpected ChangesBetween result: %v", hashesOf(between))
	}
}

func hashesOf(cs []*change.Change) []common.ChangeHash {
	out := make([]common.ChangeHash, len(cs))
	for i, c := range cs {
		out[i] = c.Hash
	}
	return out
}
