package opset

import "github.com/ledgerwatch/turbocrdt/common"

// HeadsResolver answers ancestor-set membership questions for a
// historical heads value, letting opset resolve visibility "as of H" for
// an H other than the document's current heads. Implemented by
// hashgraph.Graph; opset depends only on this interface so it stays
// testable without a real graph.
type HeadsResolver interface {
	// Ancestors returns the set of change hashes that are heads or
	// transitive dependencies of heads.
	Ancestors(heads []common.ChangeHash) common.HashSet
}
