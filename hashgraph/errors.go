package hashgraph

import (
	"errors"
	"fmt"

	"github.com/ledgerwatch/turbocrdt/common"
)

// ErrDuplicateChange is returned by Graph.Add for a hash already applied
// or already queued pending.
var ErrDuplicateChange = errors.New("hashgraph: duplicate change")

// MissingDepsError reports the dependency hashes a queued change is still
// waiting on (spec.md §4.D, §7 error kind MissingDeps(hashes)).
type MissingDepsError struct {
	Hashes []common.ChangeHash
}

func (e *MissingDepsError) Error() string {
	return fmt.Sprintf("hashgraph: missing %d dependency change(s)", len(e.Hashes))
}
