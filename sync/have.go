// Package sync implements the stateful have/need peer exchange (spec.md
// §4.H): a Bloom-filter summary of known change hashes, generated and
// received across rounds until both sides converge on the same heads.
package sync

import (
	"encoding/binary"
	"fmt"

	bloomfilter "github.com/holiman/bloomfilter/v2"

	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

// bloomBitsPerEntry and bloomHashFuncs are the Bloom parameters spec.md
// §4.H fixes: "10 bits/entry, 7 hash functions".
const (
	bloomBitsPerEntry = 10
	bloomHashFuncs    = 7
)

// changeHash64 adapts a ChangeHash into the hash.Hash64 bloomfilter.Filter
// wants, folding its first 8 bytes into the 64-bit seed the library's
// internal double-hashing expands into bloomHashFuncs independent probes
// ("32-bit hash seeds derived from change hash bytes", spec.md §4.H).
type changeHash64 uint64

func (h changeHash64) Write(p []byte) (int, error) { return len(p), nil }
func (h changeHash64) Sum(b []byte) []byte         { return b }
func (h changeHash64) Reset()                      {}
func (h changeHash64) Size() int                   { return 8 }
func (h changeHash64) BlockSize() int              { return 8 }
func (h changeHash64) Sum64() uint64               { return uint64(h) }

func seedOf(h common.ChangeHash) changeHash64 {
	return changeHash64(binary.BigEndian.Uint64(h[:8]))
}

// Have is one peer's summary of the changes it already knows about: the
// heads it had last time it synced, plus a Bloom filter over every change
// hash applied since (spec.md §4.H: "a have = {last_sync_heads,
// bloom(hashes_since_last_sync)}").
type Have struct {
	LastSyncHeads []common.ChangeHash
	Filter        *bloomfilter.Filter
}

// NewHave builds a Have summarizing hashes, sized for n expected entries.
func NewHave(lastSyncHeads []common.ChangeHash, hashes []common.ChangeHash) (*Have, error) {
	n := uint64(len(hashes))
	if n == 0 {
		n = 1
	}
	f, err := bloomfilter.New(bloomBitsPerEntry*n, bloomHashFuncs)
	if err != nil {
		return nil, err
	}
	for _, h := range hashes {
		f.Add(seedOf(h))
	}
	return &Have{LastSyncHeads: lastSyncHeads, Filter: f}, nil
}

// Contains reports whether h is probably already known to the peer this
// Have summarizes (false positives are possible; false negatives are not).
func (hv *Have) Contains(h common.ChangeHash) bool {
	if hv == nil || hv.Filter == nil {
		return false
	}
	return hv.Filter.Contains(seedOf(h))
}

// encode writes a Have as spec.md §6 lays out: "{last_sync_heads: [hash],
// bloom: {num_entries:uLEB, hash_funcs:uLEB, bytes:len-prefixed}}".
// The first scalar slot carries the filter's size in bits (Filter.M()),
// not the number of hashes added; the second carries Filter.K(). Both
// sit alongside the filter's own self-contained MarshalBinary payload,
// and decodeHave skips them and rebuilds the filter from the bytes alone.
func (hv *Have) encode(buf []byte) ([]byte, error) {
	buf = columnar.AppendUvarint(buf, uint64(len(hv.LastSyncHeads)))
	for _, h := range hv.LastSyncHeads {
		buf = append(buf, h[:]...)
	}
	buf = columnar.AppendUvarint(buf, hv.Filter.M())
	buf = columnar.AppendUvarint(buf, hv.Filter.K())
	raw, err := hv.Filter.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf = columnar.AppendUvarint(buf, uint64(len(raw)))
	buf = append(buf, raw...)
	return buf, nil
}

func decodeHave(data []byte) (*Have, []byte, error) {
	n, adv, err := columnar.ConsumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	heads := make([]common.ChangeHash, n)
	for i := uint64(0); i < n; i++ {
		if len(data) < common.HashLength {
			return nil, nil, fmt.Errorf("sync: truncated have.last_sync_heads")
		}
		copy(heads[i][:], data[:common.HashLength])
		data = data[common.HashLength:]
	}

	_, adv, err = columnar.ConsumeUvarint(data) // filter size in bits (informational)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	_, adv, err = columnar.ConsumeUvarint(data) // hash_funcs (informational)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]

	bl, adv, err := columnar.ConsumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	if uint64(len(data)) < bl {
		return nil, nil, fmt.Errorf("sync: truncated have.bloom.bytes")
	}
	f := new(bloomfilter.Filter)
	if err := f.UnmarshalBinary(data[:bl]); err != nil {
		return nil, nil, err
	}
	data = data[bl:]
	return &Have{LastSyncHeads: heads, Filter: f}, data, nil
}
