package common

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// HashLength is the width of a ChangeHash: SHA-256, per spec.md §4.C/§6.
const HashLength = 32

// ChangeHash is the content address of one Change record.
type ChangeHash [HashLength]byte

func (h ChangeHash) String() string { return hex.EncodeToString(h[:]) }

func (h ChangeHash) IsZero() bool { return h == ChangeHash{} }

func (h ChangeHash) Less(other ChangeHash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

func HashFromHex(s string) (ChangeHash, error) {
	var h ChangeHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HashLength {
		return h, ErrInvalidHashLength
	}
	copy(h[:], b)
	return h, nil
}

// SortHashes returns a new ascending-sorted copy, the canonical order heads
// are displayed/serialized in (spec.md §4.G: "heads (sorted)").
func SortHashes(hs []ChangeHash) []ChangeHash {
	out := make([]ChangeHash, len(hs))
	copy(out, hs)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// HashSet is a small set-of-hashes helper used throughout hashgraph/sync.
type HashSet map[ChangeHash]struct{}

func NewHashSet(hs ...ChangeHash) HashSet {
	s := make(HashSet, len(hs))
	for _, h := range hs {
		s[h] = struct{}{}
	}
	return s
}

func (s HashSet) Add(h ChangeHash)      { s[h] = struct{}{} }
func (s HashSet) Has(h ChangeHash) bool { _, ok := s[h]; return ok }
func (s HashSet) Remove(h ChangeHash)   { delete(s, h) }

func (s HashSet) Slice() []ChangeHash {
	out := make([]ChangeHash, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	return SortHashes(out)
}

func (s HashSet) Equal(other HashSet) bool {
	if len(s) != len(other) {
		return false
	}
	for h := range s {
		if !other.Has(h) {
			return false
		}
	}
	return true
}
