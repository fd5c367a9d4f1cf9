// Package columnar implements the compressed on-disk column encodings and
// chunk framing described in spec.md §4.B: RLE, Delta-RLE, Boolean-run, Raw,
// and String-RLE columns, grouped into change-column and op-column blocks
// and wrapped in a checksummed container.
package columnar

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// appendUvarint/consumeUvarint wrap protowire's varint primitives, which are
// byte-for-byte LEB128 — the same base-128 continuation-bit encoding
// spec.md §4.B calls "uLEB128". The teacher's own wire codec (rlp) picks a
// length-prefixed scheme instead of LEB128, but protobuf varints (already a
// direct dependency for the sync message shape, SPEC_FULL.md §2) are the
// one encoding in the domain stack that is exactly this format, so the
// column codec reuses them rather than hand-rolling a parallel varint
// reader.
func appendUvarint(buf []byte, v uint64) []byte {
	return protowire.AppendVarint(buf, v)
}

func consumeUvarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("columnar: truncated uvarint")
	}
	return v, n, nil
}

// AppendUvarint and ConsumeUvarint expose the uLEB128 primitives to sibling
// packages (change, hashgraph, sync) that frame their own tables/headers
// around column groups using the same varint encoding.
func AppendUvarint(buf []byte, v uint64) []byte { return appendUvarint(buf, v) }

func ConsumeUvarint(b []byte) (uint64, int, error) { return consumeUvarint(b) }

// zigzag/unzigzag fold a signed int64 onto the unsigned varint space so
// Delta-RLE's literal run values (which are first-differences, and so may
// be negative) can still ride on appendUvarint/consumeUvarint.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func appendVarint(buf []byte, v int64) []byte {
	return appendUvarint(buf, zigzag(v))
}

func consumeVarint(b []byte) (int64, int, error) {
	u, n, err := consumeUvarint(b)
	if err != nil {
		return 0, 0, err
	}
	return unzigzag(u), n, nil
}
