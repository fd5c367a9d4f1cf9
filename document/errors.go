package document

import (
	"errors"
	"fmt"
)

// Typed failure modes for the transaction/document API, per spec.md §4.F
// and §7. Verbs never return a bare sentinel: every failure names its
// kind so a caller can switch on it the way the teacher's rpcdaemon
// commands switch on typed ethdb/JSON-RPC errors instead of string
// matching.
var (
	// ErrReadOnly is returned by NewTx (and so by Update) when the
	// document already has an open transaction, i.e. on an attempt to
	// nest one (spec.md §4.F: "ReadOnly on nested transactions").
	ErrReadOnly = errors.New("document: nested transactions are read-only")

	// ErrStaleReference names the stale-handle failure kind. No function
	// in this package returns it: a Tx used after Commit or Rollback
	// reports ErrReadOnlyTransaction, and a Cursor whose element is no
	// longer visible reports ErrInvalidCursor.
	ErrStaleReference = errors.New("document: stale reference")

	// ErrReadOnlyTransaction is returned by Commit, or by a verb, called
	// after the transaction already resolved (a second Rollback just
	// returns 0).
	ErrReadOnlyTransaction = errors.New("document: transaction already resolved")

	// ErrInvalidCursor is returned when a cursor's encoded OpId names an
	// actor or element never recorded for the target object (spec.md §9:
	// "fail closed on unknown cursor encodings").
	ErrInvalidCursor = errors.New("document: invalid cursor")
)

// InvalidObjectIdError names the object id a verb could not resolve.
type InvalidObjectIdError struct {
	Obj string
}

func (e *InvalidObjectIdError) Error() string {
	return fmt.Sprintf("document: invalid object id %s", e.Obj)
}

// WrongObjectKindError names the mismatch between an object's actual kind
// and the kind a verb required of it (e.g. Splice on a map).
type WrongObjectKindError struct {
	Obj      string
	Want     string
	Have     string
}

func (e *WrongObjectKindError) Error() string {
	return fmt.Sprintf("document: object %s: want %s, have %s", e.Obj, e.Want, e.Have)
}

// OutOfBoundsError names an out-of-range sequence index.
type OutOfBoundsError struct {
	Index, Length int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("document: index %d out of bounds (length %d)", e.Index, e.Length)
}

// MissingDepsError re-surfaces hashgraph.MissingDepsError at the
// document API boundary, per spec.md §7's MissingDeps(hashes) kind.
type MissingDepsError struct {
	Hashes []string
}

func (e *MissingDepsError) Error() string {
	return fmt.Sprintf("document: missing %d dependency change(s)", len(e.Hashes))
}
