package columnar

// EncodeRLE encodes a nullable sequence of uint64s as runs, per spec.md
// §4.B: a run is introduced by a signed run-length —
//
//	count > 0: a repeat run of `count` copies of the one value that follows
//	count < 0: a literal run of `-count` distinct values, each written out
//	count == 0: a null run, whose length follows as a uLEB128
//
// A nil entry in values is a null. This is the encoding used directly by
// the Actor/ObjActor/ObjCtr/KeyActor/IdActor/Action/SuccNum/... RLE columns
// (spec.md §4.B's column table) whenever their declared encoding is
// "uLEB-RLE".
func EncodeRLE(values []*uint64) []byte {
	var buf []byte
	i := 0
	for i < len(values) {
		if values[i] == nil {
			j := i
			for j < len(values) && values[j] == nil {
				j++
			}
			buf = appendVarint(buf, 0)
			buf = appendUvarint(buf, uint64(j-i))
			i = j
			continue
		}
		// Count how many times the value repeats.
		v := *values[i]
		j := i + 1
		for j < len(values) && values[j] != nil && *values[j] == v {
			j++
		}
		if j-i > 1 {
			buf = appendVarint(buf, int64(j-i))
			buf = appendUvarint(buf, v)
			i = j
			continue
		}
		// No repeat: accumulate a literal run of distinct, non-null values.
		j = i
		var lits []uint64
		for j < len(values) && values[j] != nil {
			// Stop the literal run as soon as a repeat would pay off, i.e.
			// the next two entries are equal to each other.
			if j+1 < len(values) && values[j+1] != nil && *values[j] == *values[j+1] {
				break
			}
			lits = append(lits, *values[j])
			j++
		}
		buf = appendVarint(buf, -int64(len(lits)))
		for _, v := range lits {
			buf = appendUvarint(buf, v)
		}
		i = j
	}
	return buf
}

// DecodeRLE decodes exactly n values previously written by EncodeRLE.
func DecodeRLE(data []byte, n int) ([]*uint64, error) {
	out := make([]*uint64, 0, n)
	for len(out) < n {
		if len(data) == 0 {
			return nil, ErrColumnTruncated
		}
		count, adv, err := consumeVarint(data)
		if err != nil {
			return nil, err
		}
		data = data[adv:]
		switch {
		case count == 0:
			nullCount, adv, err := consumeUvarint(data)
			if err != nil {
				return nil, err
			}
			data = data[adv:]
			for k := uint64(0); k < nullCount; k++ {
				out = append(out, nil)
			}
		case count > 0:
			v, adv, err := consumeUvarint(data)
			if err != nil {
				return nil, err
			}
			data = data[adv:]
			vv := v
			for k := int64(0); k < count; k++ {
				cp := vv
				out = append(out, &cp)
			}
		default:
			lits := -count
			for k := int64(0); k < lits; k++ {
				v, adv, err := consumeUvarint(data)
				if err != nil {
					return nil, err
				}
				data = data[adv:]
				cp := v
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}
