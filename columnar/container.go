package columnar

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/golang/snappy"
)

// Magic is the 4-byte container magic from spec.md §4.B.
var Magic = [4]byte{0x85, 0x6F, 0x4A, 0x83}

// BlockType identifies what a container's chunk holds.
type BlockType uint8

const (
	BlockFullDoc          BlockType = 0
	BlockSingleChange     BlockType = 1
	BlockCompressedChange BlockType = 2
)

// WriteContainer frames chunk as
// magic(4) || checksum(4)=SHA-256(chunk)[:4] || block_type(1) || uLEB(len(chunk)) || chunk
// per spec.md §4.B.
func WriteContainer(blockType BlockType, chunk []byte) []byte {
	sum := sha256.Sum256(chunk)

	out := make([]byte, 0, 4+4+1+binary.MaxVarintLen64+len(chunk))
	out = append(out, Magic[:]...)
	out = append(out, sum[:4]...)
	out = append(out, byte(blockType))
	out = appendUvarint(out, uint64(len(chunk)))
	out = append(out, chunk...)
	return out
}

// WriteCompressedContainer snappy-compresses chunk before framing it as a
// BlockCompressedChange container, so the checksum covers the compressed
// bytes actually stored on disk or on the wire, not the original payload.
// Callers pick this over WriteContainer when chunk is large enough that
// compression is worth the CPU (spec.md §4.B leaves the threshold to the
// writer; document/save.go applies it to full-document saves).
func WriteCompressedContainer(chunk []byte) []byte {
	compressed := snappy.Encode(nil, chunk)
	return WriteContainer(BlockCompressedChange, compressed)
}

// ReadContainer validates magic and checksum and returns the block type and
// chunk bytes, plus the number of bytes consumed from data (so callers can
// frame multiple containers back to back, as §4.G's full-document format
// requires for its change sequence). A BlockCompressedChange chunk is
// snappy-decompressed before being returned, so callers never need to know
// whether a given container was stored compressed.
func ReadContainer(data []byte) (blockType BlockType, chunk []byte, consumed int, err error) {
	if len(data) < 4 {
		return 0, nil, 0, ErrColumnTruncated
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return 0, nil, 0, ErrBadMagic
	}
	off := 4
	if len(data) < off+4 {
		return 0, nil, 0, ErrColumnTruncated
	}
	checksum := data[off : off+4]
	off += 4

	if len(data) < off+1 {
		return 0, nil, 0, ErrColumnTruncated
	}
	bt := BlockType(data[off])
	off++
	if bt != BlockFullDoc && bt != BlockSingleChange && bt != BlockCompressedChange {
		return 0, nil, 0, ErrUnknownBlockType
	}

	chunkLen, adv, err := consumeUvarint(data[off:])
	if err != nil {
		return 0, nil, 0, err
	}
	off += adv

	if uint64(len(data)-off) < chunkLen {
		return 0, nil, 0, ErrColumnTruncated
	}
	chunk = data[off : uint64(off)+chunkLen]
	off += int(chunkLen)

	sum := sha256.Sum256(chunk)
	for i := 0; i < 4; i++ {
		if sum[i] != checksum[i] {
			return 0, nil, 0, ErrChecksumMismatch
		}
	}
	if bt == BlockCompressedChange {
		decompressed, derr := snappy.Decode(nil, chunk)
		if derr != nil {
			return 0, nil, 0, ErrColumnTruncated
		}
		chunk = decompressed
	}
	return bt, chunk, off, nil
}

// ChangeHashOf returns the 32-byte SHA-256 hash of a full single-change
// container per spec.md §6/§4.D: hashed over the entire container bytes
// (magic, checksum, block-type byte, length, body), not just the body.
func ChangeHashOf(container []byte) [32]byte {
	return sha256.Sum256(container)
}
