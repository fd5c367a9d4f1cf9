// Package change builds, hashes, and serializes Change records — the
// causal unit described in spec.md's overview (§2 invariant 6, §4.C): a
// change is {actor, seq, startOp, time, message, deps, ops}, content
// addressed by the SHA-256 of its canonical container bytes.
package change

import (
	"fmt"
	"sort"

	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

// Change is one causal unit: a contiguous run of ops by one actor, sealed
// at commit time (spec.md overview, invariants 4-6).
type Change struct {
	Actor   common.ActorId
	Seq     uint64
	StartOp uint64
	Time    int64
	Message string
	Deps    []common.ChangeHash
	Ops     []common.Op

	// Hash is populated by Encode and checked by Decode; it is never an
	// input to encoding (spec.md: "it is derived; it is not a free field").
	Hash common.ChangeHash
}

// MaxOp returns the counter of this change's last op (StartOp + len(Ops) -
// 1), the ΔRLE'd MaxOp column value spec.md §4.B names per change row.
func (c *Change) MaxOp() uint64 {
	if len(c.Ops) == 0 {
		return c.StartOp - 1
	}
	return c.StartOp + uint64(len(c.Ops)) - 1
}

// actorTable assigns each distinct ActorId a stable ascending index, the
// indirection every *Actor op-column stores instead of raw actor bytes
// (spec.md §4.A: "compact representation"). Index 0 is always this
// change's own author, matching the convention the teacher's header-sync
// actor tables use of putting the "local" identity first.
type actorTable struct {
	order []common.ActorId
	index map[common.ActorId]uint64
}

func newActorTable(self common.ActorId) *actorTable {
	t := &actorTable{index: map[common.ActorId]uint64{}}
	t.add(self)
	return t
}

func (t *actorTable) add(a common.ActorId) uint64 {
	if idx, ok := t.index[a]; ok {
		return idx
	}
	idx := uint64(len(t.order))
	t.order = append(t.order, a)
	t.index[a] = idx
	return idx
}

func (t *actorTable) idOf(a common.ActorId) uint64 { return t.index[a] }

// hashTable assigns each distinct dependency hash an ascending index, the
// indirection DepsIndex stores (spec.md §4.B).
type hashTable struct {
	order []common.ChangeHash
	index map[common.ChangeHash]uint64
}

func newHashTable(deps []common.ChangeHash) *hashTable {
	sorted := common.SortHashes(deps)
	t := &hashTable{index: map[common.ChangeHash]uint64{}}
	for _, h := range sorted {
		if _, ok := t.index[h]; ok {
			continue
		}
		t.index[h] = uint64(len(t.order))
		t.order = append(t.order, h)
	}
	return t
}

// Encode serializes c into a single-change container (block type
// columnar.BlockSingleChange), computes and stores its hash, and returns
// the container bytes. Encode/Decode round-trip exactly (spec.md §4.C).
func (c *Change) Encode() ([]byte, common.ChangeHash, error) {
	at := newActorTable(c.Actor)
	ht := newHashTable(c.Deps)

	for _, op := range c.Ops {
		if !op.Obj.IsRoot() {
			at.add(op.Obj.Actor)
		}
		if !op.Key.IsMap && !op.Key.IsHead() {
			at.add(op.Key.Elem.Actor)
		}
		at.add(op.ID.Actor)
		for _, id := range op.Pred.Slice() {
			at.add(id.Actor)
		}
		if op.Action == common.ActionMark || op.Action == common.ActionUnmark {
			at.add(op.MarkEnd.Actor)
		}
	}

	body := encodeActorTable(at)
	body = append(body, encodeHashTable(ht)...)
	body = append(body, encodeChangeColumns(c, at, ht)...)
	body = append(body, encodeOpColumns(c.Ops, at)...)

	container := columnar.WriteContainer(columnar.BlockSingleChange, body)
	c.Hash = columnar.ChangeHashOf(container)
	return container, c.Hash, nil
}

// Decode parses a single-change container produced by Encode and
// recomputes its hash from the container bytes. Corrupted bytes are
// rejected by ReadContainer's magic and checksum check; Decode has no
// expected hash of its own to compare the recomputed one against.
func Decode(container []byte) (*Change, error) {
	blockType, body, _, err := columnar.ReadContainer(container)
	if err != nil {
		return nil, err
	}
	if blockType != columnar.BlockSingleChange {
		return nil, fmt.Errorf("change: expected single-change block, got type %d", blockType)
	}

	actors, rest, err := decodeActorTable(body)
	if err != nil {
		return nil, err
	}
	hashes, rest, err := decodeHashTable(rest)
	if err != nil {
		return nil, err
	}
	c, rest, err := decodeChangeColumns(rest, actors, hashes)
	if err != nil {
		return nil, err
	}
	ops, err := decodeOpColumns(rest, actors)
	if err != nil {
		return nil, err
	}
	c.Ops = ops
	if len(ops) > 0 {
		c.StartOp = ops[0].ID.Counter
		if err := checkSequentialCounters(c.Actor, c.StartOp, ops); err != nil {
			return nil, err
		}
	}

	c.Hash = common.ChangeHash(columnar.ChangeHashOf(container))
	return c, nil
}

// checkSequentialCounters enforces spec.md §7's invariant 4: the ops an
// actor contributes within one change must carry gapless counters starting
// at StartOp. Ops can reference other actors' OpIds (Obj, Key, Pred,
// MarkEnd) but every op this change itself creates is stamped with the
// change's own actor, so only those need checking.
func checkSequentialCounters(actor common.ActorId, startOp uint64, ops []common.Op) error {
	want := startOp
	for _, op := range ops {
		if op.ID.Actor != actor {
			continue
		}
		if op.ID.Counter != want {
			return &OutOfOrderCountersError{Actor: actor.String(), Expected: want, Got: op.ID.Counter}
		}
		want++
	}
	return nil
}

func encodeActorTable(at *actorTable) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(at.order)))
	for _, a := range at.order {
		b := a.Bytes()
		buf = appendUvarint(buf, uint64(len(b)))
		buf = append(buf, b...)
	}
	return buf
}

func decodeActorTable(data []byte) ([]common.ActorId, []byte, error) {
	n, adv, err := consumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	actors := make([]common.ActorId, n)
	for i := uint64(0); i < n; i++ {
		l, adv, err := consumeUvarint(data)
		if err != nil {
			return nil, nil, err
		}
		data = data[adv:]
		if uint64(len(data)) < l {
			return nil, nil, fmt.Errorf("change: truncated actor table")
		}
		a, err := common.NewActorId(data[:l])
		if err != nil {
			return nil, nil, err
		}
		actors[i] = a
		data = data[l:]
	}
	return actors, data, nil
}

func encodeHashTable(ht *hashTable) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(ht.order)))
	for _, h := range ht.order {
		buf = append(buf, h[:]...)
	}
	return buf
}

func decodeHashTable(data []byte) ([]common.ChangeHash, []byte, error) {
	n, adv, err := consumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	hashes := make([]common.ChangeHash, n)
	for i := uint64(0); i < n; i++ {
		if len(data) < common.HashLength {
			return nil, nil, fmt.Errorf("change: truncated hash table")
		}
		copy(hashes[i][:], data[:common.HashLength])
		data = data[common.HashLength:]
	}
	return hashes, data, nil
}

func encodeChangeColumns(c *Change, at *actorTable, ht *hashTable) []byte {
	depIdx := make([]uint64, len(c.Deps))
	sortedDeps := common.SortHashes(c.Deps)
	for i, h := range sortedDeps {
		depIdx[i] = ht.index[h]
	}

	cols := map[uint64][]byte{
		1:  columnar.EncodeRLE([]*uint64{u64p(at.idOf(c.Actor))}),
		3:  columnar.EncodeDeltaRLE([]*uint64{u64p(c.Seq)}),
		19: columnar.EncodeDeltaRLE([]*uint64{u64p(c.MaxOp())}),
		35: columnar.EncodeDeltaRLE([]*uint64{u64p(uint64(c.Time))}),
		53: columnar.EncodeStrRLE([]*string{&c.Message}),
		64: columnar.EncodeRLE([]*uint64{u64p(uint64(len(c.Deps)))}),
		67: columnar.EncodeDeltaRLE(u64pSlice(depIdx)),
	}
	return columnar.EncodeGroup(cols)
}

func decodeChangeColumns(data []byte, actors []common.ActorId, hashes []common.ChangeHash) (*Change, []byte, error) {
	cols, err := columnar.DecodeGroup(data)
	if err != nil {
		return nil, nil, err
	}
	// The single-change container always has exactly one change row; the
	// column group's own length framing tells us where it ends, but since
	// change-columns and op-columns are two independently length-prefixed
	// groups concatenated together (see Encode), consuming one group does
	// not tell us its byte length from the caller's side — recompute it.
	consumed := groupByteLen(data)

	actorIdx, err := columnar.DecodeRLE(cols[1], 1)
	if err != nil {
		return nil, nil, err
	}
	seq, err := columnar.DecodeDeltaRLE(cols[3], 1)
	if err != nil {
		return nil, nil, err
	}
	_, err = columnar.DecodeDeltaRLE(cols[19], 1) // MaxOp: redundant with StartOp+len(ops); decoded and discarded, not checked
	if err != nil {
		return nil, nil, err
	}
	tm, err := columnar.DecodeDeltaRLE(cols[35], 1)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := columnar.DecodeStrRLE(cols[53], 1)
	if err != nil {
		return nil, nil, err
	}
	depsNum, err := columnar.DecodeRLE(cols[64], 1)
	if err != nil {
		return nil, nil, err
	}
	n := int(derefOr(depsNum[0], 0))
	depsIdx, err := columnar.DecodeDeltaRLE(cols[67], n)
	if err != nil {
		return nil, nil, err
	}

	if actorIdx[0] == nil {
		return nil, nil, &UnknownActorError{Column: "Actor", Index: -1, Actors: len(actors)}
	}
	if int(*actorIdx[0]) >= len(actors) {
		return nil, nil, &UnknownActorError{Column: "Actor", Index: int(*actorIdx[0]), Actors: len(actors)}
	}
	deps := make([]common.ChangeHash, n)
	for i, idx := range depsIdx {
		if idx == nil || int(*idx) >= len(hashes) {
			return nil, nil, fmt.Errorf("change: invalid dep index")
		}
		deps[i] = hashes[*idx]
	}

	c := &Change{
		Actor:   actors[*actorIdx[0]],
		Seq:     derefOr(seq[0], 0),
		Time:    int64(derefOr(tm[0], 0)),
		Message: derefStrOr(msgs[0], ""),
		Deps:    deps,
	}
	return c, data[consumed:], nil
}

// groupByteLen re-parses a column group's preamble just far enough to
// learn the total byte length it (and its data) occupy, without
// re-decoding every column, so the caller can find where the next group
// starts.
func groupByteLen(data []byte) int {
	count, adv, err := consumeUvarint(data)
	if err != nil {
		return len(data)
	}
	off := adv
	total := uint64(0)
	for i := uint64(0); i < count; i++ {
		_, a1, err := consumeUvarint(data[off:])
		if err != nil {
			return len(data)
		}
		off += a1
		l, a2, err := consumeUvarint(data[off:])
		if err != nil {
			return len(data)
		}
		off += a2
		total += l
	}
	return off + int(total)
}

func appendUvarint(buf []byte, v uint64) []byte { return columnar.AppendUvarint(buf, v) }

func consumeUvarint(b []byte) (uint64, int, error) { return columnar.ConsumeUvarint(b) }

func u64p(v uint64) *uint64 { return &v }

func u64pSlice(vs []uint64) []*uint64 {
	out := make([]*uint64, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

func derefOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}

func derefStrOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func sortedOpIds(ids []common.OpId) []common.OpId {
	out := make([]common.OpId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
