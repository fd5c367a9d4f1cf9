package columnar

// EncodeRaw concatenates values with no framing of its own; per spec.md
// §4.B a Raw column is always paired with a companion RLE/Delta-RLE "len"
// column that records each value's byte length, so the raw bytes carry no
// length prefix. Returns the concatenated bytes and the matching lengths,
// ready to be fed to EncodeRLE for the companion column.
func EncodeRaw(values [][]byte) (data []byte, lens []uint64) {
	lens = make([]uint64, len(values))
	for i, v := range values {
		data = append(data, v...)
		lens[i] = uint64(len(v))
	}
	return data, lens
}

// DecodeRaw splits a concatenated Raw column back into values using a
// companion lengths slice (itself already decoded from its RLE/Delta-RLE
// column via DecodeRLE/DecodeDeltaRLE, with nulls treated as zero length).
func DecodeRaw(data []byte, lens []uint64) ([][]byte, error) {
	out := make([][]byte, len(lens))
	var off uint64
	for i, l := range lens {
		if off+l > uint64(len(data)) {
			return nil, ErrColumnTruncated
		}
		out[i] = data[off : off+l]
		off += l
	}
	return out, nil
}
