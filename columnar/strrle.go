package columnar

// EncodeStrRLE encodes a nullable sequence of strings using the same
// repeat/literal/null run scheme as EncodeRLE (spec.md §4.B), except each
// literal value is itself a uLEB128 length followed by its raw UTF-8 bytes.
// Used by the string-valued columns (KeyStr and the change Message).
func EncodeStrRLE(values []*string) []byte {
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
			buf = appendStr(buf, v)
			i = j
			continue
		}
		j = i
		var lits []string
		for j < len(values) && values[j] != nil {
			if j+1 < len(values) && values[j+1] != nil && *values[j] == *values[j+1] {
				break
			}
			lits = append(lits, *values[j])
			j++
		}
		buf = appendVarint(buf, -int64(len(lits)))
		for _, v := range lits {
			buf = appendStr(buf, v)
		}
		i = j
	}
	return buf
}

// DecodeStrRLE decodes exactly n values previously written by
// EncodeStrRLE.
func DecodeStrRLE(data []byte, n int) ([]*string, error) {
	out := make([]*string, 0, n)
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
			v, adv, err := consumeStr(data)
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
				v, adv, err := consumeStr(data)
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

func appendStr(buf []byte, s string) []byte {
	buf = appendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func consumeStr(data []byte) (string, int, error) {
	l, adv, err := consumeUvarint(data)
	if err != nil {
		return "", 0, err
	}
	data = data[adv:]
	if uint64(len(data)) < l {
		return "", 0, ErrColumnTruncated
	}
	s := string(data[:l])
	return s, adv + int(l), nil
}
