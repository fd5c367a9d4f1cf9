package sync

import (
	"fmt"

	"github.com/ledgerwatch/turbocrdt/change"
	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

// magic identifies a sync message on the wire (spec.md §6: "magic 0x42
// 0x52").
var magic = [2]byte{0x42, 0x52}

// Message is one round of the per-peer exchange (spec.md §4.H/§6): the
// sender's current heads, the dependency hashes it still needs from the
// peer, its Bloom "have" summaries, and the changes it is pushing this
// round.
type Message struct {
	Heads   []common.ChangeHash
	Need    []common.ChangeHash
	Haves   []*Have
	Changes []*change.Change
}

// Encode serializes m as spec.md §6 describes: magic, then uLEB-prefixed
// heads, need, have-entries, and changes.
func (m *Message) Encode() ([]byte, error) {
	buf := append([]byte{}, magic[0], magic[1])
	buf = appendHashList(buf, m.Heads)
	buf = appendHashList(buf, m.Need)

	buf = columnar.AppendUvarint(buf, uint64(len(m.Haves)))
	for _, hv := range m.Haves {
		var err error
		buf, err = hv.encode(buf)
		if err != nil {
			return nil, err
		}
	}

	buf = columnar.AppendUvarint(buf, uint64(len(m.Changes)))
	for _, c := range m.Changes {
		container, _, err := c.Encode()
		if err != nil {
			return nil, err
		}
		buf = columnar.AppendUvarint(buf, uint64(len(container)))
		buf = append(buf, container...)
	}
	return buf, nil
}

// Decode parses a wire Message produced by Encode.
func Decode(data []byte) (*Message, error) {
	if len(data) < 2 || data[0] != magic[0] || data[1] != magic[1] {
		return nil, fmt.Errorf("sync: bad message magic")
	}
	data = data[2:]

	heads, data, err := consumeHashList(data)
	if err != nil {
		return nil, err
	}
	need, data, err := consumeHashList(data)
	if err != nil {
		return nil, err
	}

	hn, adv, err := columnar.ConsumeUvarint(data)
	if err != nil {
		return nil, err
	}
	data = data[adv:]
	haves := make([]*Have, hn)
	for i := uint64(0); i < hn; i++ {
		var hv *Have
		hv, data, err = decodeHave(data)
		if err != nil {
			return nil, err
		}
		haves[i] = hv
	}

	cn, adv, err := columnar.ConsumeUvarint(data)
	if err != nil {
		return nil, err
	}
	data = data[adv:]
	changes := make([]*change.Change, cn)
	for i := uint64(0); i < cn; i++ {
		l, adv, err := columnar.ConsumeUvarint(data)
		if err != nil {
			return nil, err
		}
		data = data[adv:]
		if uint64(len(data)) < l {
			return nil, fmt.Errorf("sync: truncated change container")
		}
		c, err := change.Decode(data[:l])
		if err != nil {
			return nil, err
		}
		changes[i] = c
		data = data[l:]
	}

	return &Message{Heads: heads, Need: need, Haves: haves, Changes: changes}, nil
}

func appendHashList(buf []byte, hs []common.ChangeHash) []byte {
	buf = columnar.AppendUvarint(buf, uint64(len(hs)))
	for _, h := range hs {
		buf = append(buf, h[:]...)
	}
	return buf
}

func consumeHashList(data []byte) ([]common.ChangeHash, []byte, error) {
	n, adv, err := columnar.ConsumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	data = data[adv:]
	out := make([]common.ChangeHash, n)
	for i := uint64(0); i < n; i++ {
		if len(data) < common.HashLength {
			return nil, nil, fmt.Errorf("sync: truncated hash list")
		}
		copy(out[i][:], data[:common.HashLength])
		data = data[common.HashLength:]
	}
	return out, data, nil
}
