package columnar

import "errors"

var (
	// ErrColumnTruncated is returned when a column's run stream ends before
	// the declared element count is reached.
	ErrColumnTruncated = errors.New("columnar: column data truncated")
	// ErrBadMagic is returned when a container's leading magic bytes don't
	// match the expected sequence.
	ErrBadMagic = errors.New("columnar: bad container magic")
	// ErrChecksumMismatch is returned when a chunk's stored checksum
	// disagrees with the SHA-256 of its bytes.
	ErrChecksumMismatch = errors.New("columnar: checksum mismatch")
	// ErrUnknownBlockType is returned for a block-type byte outside 0..2.
	ErrUnknownBlockType = errors.New("columnar: unknown block type")
	// ErrColumnOrder is returned when a column group's (id, len) pairs are
	// not strictly ascending by id, which the decoder relies on to detect
	// truncation and duplicate ids.
	ErrColumnOrder = errors.New("columnar: column ids out of order")
)
