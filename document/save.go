package document

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

// Full save's body is [actor table][heads table][one single-change
// container per applied change, in topological order] — each inner
// container is exactly what Change.Encode already produces and is
// self-framing (magic + length + checksum), so Load needs no extra
// length prefixes between them. This is deliberately the same shape
// incremental save already uses for its chunk stream (spec.md §4.G:
// "concatenation of single-change chunks"); the full-save envelope only
// adds the actor/heads header the format calls for, which Load
// cross-checks against what it actually reconstructs rather than trusting
// blindly. Testable property 3 ("incremental = full") then holds almost
// by construction: both are sequences of the identical per-change bytes.
type LoadOptions struct {
	// AllowMissingDeps queues orphaned changes instead of failing the
	// load outright (spec.md §4.G).
	AllowMissingDeps bool
}

// Save serializes every change that is an ancestor of the current heads
// (spec.md §4.G full save).
func (d *Document) Save() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.saveScopedLocked(nil)
}

func (d *Document) saveScopedLocked(heads []common.ChangeHash) ([]byte, error) {
	target := heads
	if len(target) == 0 {
		target = d.graph.Heads()
	}
	changes := d.graph.ChangesBetween(nil, target)

	actorSet := map[common.ActorId]struct{}{}
	for _, c := range changes {
		actorSet[c.Actor] = struct{}{}
		for _, op := range c.Ops {
			actorSet[op.ID.Actor] = struct{}{}
		}
	}
	actors := make([]common.ActorId, 0, len(actorSet))
	for a := range actorSet {
		actors = append(actors, a)
	}
	actors = common.SortActorIds(actors)

	var body []byte
	body = columnar.AppendUvarint(body, uint64(len(actors)))
	for _, a := range actors {
		b := a.Bytes()
		body = columnar.AppendUvarint(body, uint64(len(b)))
		body = append(body, b...)
	}

	sortedHeads := common.SortHashes(target)
	body = columnar.AppendUvarint(body, uint64(len(sortedHeads)))
	for _, h := range sortedHeads {
		body = append(body, h[:]...)
	}

	for _, c := range changes {
		container, _, err := c.Encode()
		if err != nil {
			return nil, err
		}
		body = append(body, container...)
	}
	// Full-document bodies grow with every change since genesis, so past a
	// small threshold it's worth spending the snappy CPU to shrink what
	// hits disk or the wire; below it the container framing overhead would
	// dominate any savings.
	compressThreshold := uint64(1 * datasize.KB)
	if uint64(len(body)) >= compressThreshold {
		return columnar.WriteCompressedContainer(body), nil
	}
	return columnar.WriteContainer(columnar.BlockFullDoc, body), nil
}

// SaveIncremental returns the single-change chunks for every applied
// change not an ancestor of since (spec.md §4.G incremental save).
func (d *Document) SaveIncremental(since []common.ChangeHash) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	changes := d.graph.ChangesBetween(since, d.graph.Heads())
	var body []byte
	for _, c := range changes {
		container, _, err := c.Encode()
		if err != nil {
			return nil, err
		}
		body = append(body, container...)
	}
	return body, nil
}

// Load reconstructs a Document from bytes produced by Save, committing
// any further local transactions under actor (spec.md §4.F load).
func Load(actor common.ActorId, data []byte) (*Document, error) {
	return LoadWithOptions(actor, data, LoadOptions{})
}

// LoadWithOptions is Load with the §4.G "allow_missing_deps" escape
// hatch: partial corruption or a chunk referencing an unavailable
// dependency normally fails the whole load, but with AllowMissingDeps set
// the orphaned change is queued instead (hashgraph already supports this
// natively via Graph.Add).
func LoadWithOptions(actor common.ActorId, data []byte, opts LoadOptions) (*Document, error) {
	blockType, body, _, err := columnar.ReadContainer(data)
	if err != nil {
		return nil, err
	}
	if blockType != columnar.BlockFullDoc && blockType != columnar.BlockCompressedChange {
		return nil, fmt.Errorf("document: expected full-doc block, got type %d", blockType)
	}

	n, adv, err := columnar.ConsumeUvarint(body)
	if err != nil {
		return nil, err
	}
	body = body[adv:]
	declaredActors := make([]common.ActorId, n)
	for i := uint64(0); i < n; i++ {
		l, adv, err := columnar.ConsumeUvarint(body)
		if err != nil {
			return nil, err
		}
		body = body[adv:]
		if uint64(len(body)) < l {
			return nil, fmt.Errorf("document: truncated actor table")
		}
		a, err := common.NewActorId(body[:l])
		if err != nil {
			return nil, err
		}
		declaredActors[i] = a
		body = body[l:]
	}

	hn, adv, err := columnar.ConsumeUvarint(body)
	if err != nil {
		return nil, err
	}
	body = body[adv:]
	declaredHeads := make([]common.ChangeHash, hn)
	for i := uint64(0); i < hn; i++ {
		if len(body) < common.HashLength {
			return nil, fmt.Errorf("document: truncated heads table")
		}
		copy(declaredHeads[i][:], body[:common.HashLength])
		body = body[common.HashLength:]
	}

	d := New(actor)
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := map[common.ActorId]struct{}{}
	for len(body) > 0 {
		bt, _, consumed, err := columnar.ReadContainer(body)
		if err != nil {
			return nil, err
		}
		if bt != columnar.BlockSingleChange {
			return nil, fmt.Errorf("document: expected single-change block within full-doc, got type %d", bt)
		}
		c, err := change.Decode(body[:consumed])
		if err != nil {
			return nil, err
		}
		seen[c.Actor] = struct{}{}
		for _, op := range c.Ops {
			seen[op.ID.Actor] = struct{}{}
		}
		if err := d.applyLocked(c); err != nil {
			if _, ok := err.(*MissingDepsError); !(ok && opts.AllowMissingDeps) {
				return nil, err
			}
		}
		body = body[consumed:]
	}

	declared := map[common.ActorId]struct{}{}
	for _, a := range declaredActors {
		declared[a] = struct{}{}
	}
	for a := range seen {
		if _, ok := declared[a]; !ok {
			return nil, fmt.Errorf("document: actor %s present in changes but absent from the declared actor table", a)
		}
	}

	if !opts.AllowMissingDeps {
		got := common.SortHashes(d.graph.Heads())
		want := common.SortHashes(declaredHeads)
		if !hashesEqual(got, want) {
			return nil, fmt.Errorf("document: reconstructed heads do not match the declared heads table")
		}
	}
	return d, nil
}

func hashesEqual(a, b []common.ChangeHash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
