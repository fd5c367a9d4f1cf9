package common

import (
	"bytes"
	"encoding/hex"
	"sort"
)

// MaxActorLen is the wire limit on an ActorId's byte length (spec.md §3).
const MaxActorLen = 128

// ActorId is an opaque, totally-ordered (lexicographic) identifier for an
// independent writer. It is compared and hashed by its raw bytes, never by
// any string encoding, so two actors built from the same bytes via
// different constructors compare equal.
type ActorId string

// NewActorId builds an ActorId from raw bytes, rejecting anything over the
// wire limit with ErrActorTooLong.
func NewActorId(b []byte) (ActorId, error) {
	if len(b) > MaxActorLen {
		return "", ErrActorTooLong
	}
	return ActorId(b), nil
}

// ActorIdFromHex parses the lowercase-hex display form used by the CLI.
func ActorIdFromHex(s string) (ActorId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return NewActorId(b)
}

func (a ActorId) Bytes() []byte { return []byte(a) }

func (a ActorId) String() string { return hex.EncodeToString([]byte(a)) }

// Less implements the lexicographic total order required by spec.md §3.
func (a ActorId) Less(b ActorId) bool {
	return bytes.Compare([]byte(a), []byte(b)) < 0
}

// SortActorIds returns a new, ascending-sorted copy of ids, the canonical
// order full-save's actor table is written in (spec.md §4.G).
func SortActorIds(ids []ActorId) []ActorId {
	out := make([]ActorId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
