package columnar

// EncodeDeltaRLE encodes a nullable sequence of uint64s as RLE over their
// first differences, per spec.md §4.B: consecutive non-null values are
// replaced by signed deltas from the previous non-null value (the first
// non-null value is a delta from zero), and the resulting delta sequence is
// then run-length encoded exactly like EncodeRLE except runs carry signed,
// zigzag-folded varints instead of unsigned ones. Nulls pass through as
// their own null runs and do not participate in the delta chain.
//
// This is the encoding used by the KeyCtr/IdCtr/Counter-style
// monotonic-ish columns (spec.md §4.B), where storing differences keeps
// each run-length literal small.
func EncodeDeltaRLE(values []*uint64) []byte {
	deltas := make([]*int64, len(values))
	var prev uint64
	for i, v := range values {
		if v == nil {
			deltas[i] = nil
			continue
		}
		d := int64(*v - prev)
		deltas[i] = &d
		prev = *v
	}
	return encodeDeltaRuns(deltas)
}

// DecodeDeltaRLE decodes exactly n values previously written by
// EncodeDeltaRLE.
func DecodeDeltaRLE(data []byte, n int) ([]*uint64, error) {
	deltas, err := decodeDeltaRuns(data, n)
	if err != nil {
		return nil, err
	}
	out := make([]*uint64, n)
	var prev uint64
	for i, d := range deltas {
		if d == nil {
			continue
		}
		prev = uint64(int64(prev) + *d)
		v := prev
		out[i] = &v
	}
	return out, nil
}

func encodeDeltaRuns(values []*int64) []byte {
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
		v := *values[i]
		j := i + 1
		for j < len(values) && values[j] != nil && *values[j] == v {
			j++
		}
		if j-i > 1 {
			buf = appendVarint(buf, int64(j-i))
			buf = appendVarint(buf, v)
			i = j
			continue
		}
		j = i
		var lits []int64
		for j < len(values) && values[j] != nil {
			if j+1 < len(values) && values[j+1] != nil && *values[j] == *values[j+1] {
				break
			}
			lits = append(lits, *values[j])
			j++
		}
		buf = appendVarint(buf, -int64(len(lits)))
		for _, v := range lits {
			buf = appendVarint(buf, v)
		}
		i = j
	}
	return buf
}

func decodeDeltaRuns(data []byte, n int) ([]*int64, error) {
	out := make([]*int64, 0, n)
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
			v, adv, err := consumeVarint(data)
			if err != nil {
				return nil, err
			}
			data = data[adv:]
			for k := int64(0); k < count; k++ {
				cp := v
				out = append(out, &cp)
			}
		default:
			lits := -count
			for k := int64(0); k < lits; k++ {
				v, adv, err := consumeVarint(data)
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
