package sync

import (
	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/document"
)

// maxRoundBytes caps how many change bytes one Generate call packs into a
// single round: a peer with a large backlog gets it spread over several
// rounds rather than one outsized message, matching spec.md §4.H's framing
// of sync as an iterated, bounded-round exchange.
var maxRoundBytes = uint64(64 * datasize.KB)

// Session is one peer's state for a stateful sync exchange (spec.md §4.H:
// "{shared_heads, last_sent_heads, their_heads, their_have, sent_hashes}").
// A Session drives one direction; two documents syncing with each other
// each keep their own Session naming the other as peer.
type Session struct {
	SharedHeads   []common.ChangeHash
	LastSentHeads []common.ChangeHash
	TheirHeads    []common.ChangeHash
	TheirHave     *Have
	SentHashes    common.HashSet
}

// NewSession starts a fresh per-peer exchange with no history assumed.
func NewSession() *Session {
	return &Session{SentHashes: common.NewHashSet()}
}

// Generate computes the next round's outbound Message (spec.md §4.H step
// 1): candidates are every change that is an ancestor of our heads, minus
// whatever the peer's last-reported Have says it probably already holds,
// minus anything we already sent this session. If that set is empty and
// our heads already match the peer's last-reported heads, with nothing
// outstanding on our need list, sync is complete and Generate returns
// (nil, false) — the wire-level `null` spec.md names. Outstanding changes
// past maxRoundBytes carry over to the next Generate call rather than all
// going out in one message.
func (s *Session) Generate(doc *document.Document) (*Message, bool) {
	heads := doc.Heads()
	all := doc.AllChanges(heads...)
	need := doc.MissingDeps()

	var outstanding []*change.Change
	for _, c := range all {
		if s.SentHashes.Has(c.Hash) {
			continue
		}
		if s.TheirHave.Contains(c.Hash) {
			continue
		}
		outstanding = append(outstanding, c)
	}

	if len(outstanding) == 0 && len(need) == 0 && headsEqual(heads, s.TheirHeads) {
		return nil, false
	}

	var pending []*change.Change
	var sent uint64
	for _, c := range outstanding {
		if sent >= maxRoundBytes && len(pending) > 0 {
			break
		}
		container, _, err := c.Encode()
		if err != nil {
			continue
		}
		pending = append(pending, c)
		sent += uint64(len(container))
	}

	result := &Message{Heads: heads, Need: need, Changes: pending}
	for _, c := range pending {
		s.SentHashes.Add(c.Hash)
	}
	s.LastSentHeads = heads

	if have, err := NewHave(heads, hashesOf(all)); err == nil {
		result.Haves = []*Have{have}
	}
	return result, true
}

// Receive folds an inbound Message into doc and updates session state
// (spec.md §4.H step 2): apply every included change, record the peer's
// reported heads/have, and recompute shared_heads as those of our current
// heads the peer also reported (see intersectHeads).
func (s *Session) Receive(doc *document.Document, msg *Message) error {
	for _, c := range msg.Changes {
		if err := doc.Apply(c); err != nil {
			if _, ok := err.(*document.MissingDepsError); ok {
				continue
			}
			return err
		}
	}
	s.TheirHeads = msg.Heads
	if len(msg.Haves) > 0 {
		s.TheirHave = msg.Haves[0]
	}
	s.SharedHeads = intersectHeads(doc.Heads(), s.TheirHeads)
	return nil
}

func headsEqual(a, b []common.ChangeHash) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := common.SortHashes(a), common.SortHashes(b)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// intersectHeads keeps whichever of our own heads the peer also reported,
// a cheap approximation of "the ancestor set both frontiers share" that is
// exact once both sides have fully converged and otherwise just narrows
// conservatively round over round.
func intersectHeads(mine, theirs []common.ChangeHash) []common.ChangeHash {
	theirSet := common.NewHashSet(theirs...)
	var out []common.ChangeHash
	for _, h := range mine {
		if theirSet.Has(h) {
			out = append(out, h)
		}
	}
	return out
}

func hashesOf(changes []*change.Change) []common.ChangeHash {
	out := make([]common.ChangeHash, len(changes))
	for i, c := range changes {
		out[i] = c.Hash
	}
	return out
}
