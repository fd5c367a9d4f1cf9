package columnar

import "sort"

// EncodeGroup packs a set of already-encoded columns (keyed by column id)
// into one column-group block per spec.md §4.B: a preamble of a uLEB128
// column count followed by (uLEB128 id, uLEB128 byte-length) pairs in
// ascending id order, then the columns' bytes concatenated in that same
// order. Columns with zero-length data are omitted entirely — both from
// the preamble and the body — since an absent column and an empty column
// are indistinguishable on decode and the spec treats omission as the
// canonical form.
func EncodeGroup(cols map[uint64][]byte) []byte {
	ids := make([]uint64, 0, len(cols))
	for id, data := range cols {
		if len(data) == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var preamble []byte
	preamble = appendUvarint(preamble, uint64(len(ids)))
	for _, id := range ids {
		preamble = appendUvarint(preamble, id)
		preamble = appendUvarint(preamble, uint64(len(cols[id])))
	}
	out := preamble
	for _, id := range ids {
		out = append(out, cols[id]...)
	}
	return out
}

// DecodeGroup reverses EncodeGroup, returning the present columns keyed by
// id. A column id absent from the preamble is simply absent from the
// returned map, so callers see it as empty data: the column decoders accept
// that only for a row count of zero and return ErrColumnTruncated otherwise.
func DecodeGroup(data []byte) (map[uint64][]byte, error) {
	count, adv, err := consumeUvarint(data)
	if err != nil {
		return nil, err
	}
	data = data[adv:]

	type entry struct {
		id  uint64
		len uint64
	}
	entries := make([]entry, 0, count)
	var lastID uint64
	for i := uint64(0); i < count; i++ {
		id, adv, err := consumeUvarint(data)
		if err != nil {
			return nil, err
		}
		data = data[adv:]
		l, adv, err := consumeUvarint(data)
		if err != nil {
			return nil, err
		}
		data = data[adv:]
		if i > 0 && id <= lastID {
			return nil, ErrColumnOrder
		}
		lastID = id
		entries = append(entries, entry{id, l})
	}

	cols := make(map[uint64][]byte, len(entries))
	for _, e := range entries {
		if uint64(len(data)) < e.len {
			return nil, ErrColumnTruncated
		}
		cols[e.id] = data[:e.len]
		data = data[e.len:]
	}
	return cols, nil
}
