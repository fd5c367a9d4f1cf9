package columnar

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ledgerwatch/turbocrdt/common"
)

// ValLen packs a datatype tag into the low nibble and the exact ValRaw byte
// count into the remaining bits ((byte_count << 4) | tag). Tags 0-9 are common.ValueKind, carried by Set ops; tags 10 and
// 11 are this codec's own extension for Mark/Unmark payloads, since
// spec.md leaves the wire shape of a mark's name/expansion-policy payload
// unspecified beyond "pack it into ValLen/ValRaw" — see DESIGN.md for this
// Open Question's resolution.
const (
	tagMarkPayload   = 10
	tagUnmarkPayload = 11
)

// EncodeValue packs a Value into a (ValLen, ValRaw-fragment) pair.
func EncodeValue(v common.Value) (valLen uint64, raw []byte) {
	switch v.Kind {
	case common.KindNull:
		raw = nil
	case common.KindBool:
		if v.Bool {
			raw = []byte{1}
		} else {
			raw = []byte{0}
		}
	case common.KindInt, common.KindTimestamp, common.KindCounter:
		raw = appendVarint(nil, v.Int)
	case common.KindUint:
		raw = appendUvarint(nil, v.Uint)
	case common.KindFloat64:
		raw = make([]byte, 8)
		binary.BigEndian.PutUint64(raw, math.Float64bits(v.Float))
	case common.KindStr:
		raw = []byte(v.Str)
	case common.KindBytes:
		raw = v.Bytes
	case common.KindCursor:
		raw = appendUvarint(nil, v.Cur.Counter)
		raw = append(raw, v.Cur.Actor.Bytes()...)
	default:
		panic(fmt.Sprintf("columnar: unknown value kind %d", v.Kind))
	}
	valLen = uint64(len(raw))<<4 | uint64(v.Kind)
	return valLen, raw
}

// DecodeValue reverses EncodeValue given the ValLen word and the matching
// slice of ValRaw bytes (already sliced to the declared length by the
// caller via DecodeRaw).
func DecodeValue(valLen uint64, raw []byte) (common.Value, error) {
	tag := valLen & 0xF
	n := valLen >> 4
	if uint64(len(raw)) != n {
		return common.Value{}, fmt.Errorf("columnar: ValRaw length %d does not match ValLen %d", len(raw), n)
	}
	switch common.ValueKind(tag) {
	case common.KindNull:
		return common.NullValue(), nil
	case common.KindBool:
		if len(raw) != 1 {
			return common.Value{}, fmt.Errorf("columnar: bool value must be 1 byte, got %d", len(raw))
		}
		return common.BoolValue(raw[0] != 0), nil
	case common.KindInt:
		i, adv, err := consumeVarint(raw)
		if err != nil || adv != len(raw) {
			return common.Value{}, fmt.Errorf("columnar: malformed int value")
		}
		return common.IntValue(i), nil
	case common.KindUint:
		u, adv, err := consumeUvarint(raw)
		if err != nil || adv != len(raw) {
			return common.Value{}, fmt.Errorf("columnar: malformed uint value")
		}
		return common.UintValue(u), nil
	case common.KindFloat64:
		if len(raw) != 8 {
			return common.Value{}, fmt.Errorf("columnar: float64 value must be 8 bytes, got %d", len(raw))
		}
		return common.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(raw))), nil
	case common.KindStr:
		return common.StrValue(string(raw)), nil
	case common.KindBytes:
		return common.BytesValue(raw), nil
	case common.KindTimestamp:
		i, adv, err := consumeVarint(raw)
		if err != nil || adv != len(raw) {
			return common.Value{}, fmt.Errorf("columnar: malformed timestamp value")
		}
		return common.TimestampValue(i), nil
	case common.KindCounter:
		i, adv, err := consumeVarint(raw)
		if err != nil || adv != len(raw) {
			return common.Value{}, fmt.Errorf("columnar: malformed counter value")
		}
		return common.CounterValue(i), nil
	case common.KindCursor:
		ctr, adv, err := consumeUvarint(raw)
		if err != nil {
			return common.Value{}, fmt.Errorf("columnar: malformed cursor value")
		}
		actor, err := common.NewActorId(raw[adv:])
		if err != nil {
			return common.Value{}, err
		}
		return common.CursorValue(common.OpId{Counter: ctr, Actor: actor}), nil
	default:
		return common.Value{}, fmt.Errorf("columnar: unrecognized value tag %d (fail closed)", tag)
	}
}

// EncodeMarkPayload packs a Mark op's name, value, and expansion policy
// into the same (ValLen, ValRaw-fragment) shape Set values use, tagged
// with tagMarkPayload so the decoder can tell a mark payload from a
// scalar value sharing the same Action column row. The value is packed
// by nesting EncodeValue's own (valLen,raw) pair after the name, since a
// mark's value (spec.md §4.E: "Mark(name,value,expand)") is itself an
// arbitrary scalar.
func EncodeMarkPayload(name string, value common.Value, expand common.ExpandMark) (valLen uint64, raw []byte) {
	innerLen, innerRaw := EncodeValue(value)
	raw = []byte{byte(expand)}
	raw = appendStr(raw, name)
	raw = appendUvarint(raw, innerLen)
	raw = append(raw, innerRaw...)
	valLen = uint64(len(raw))<<4 | tagMarkPayload
	return valLen, raw
}

// DecodeMarkPayload reverses EncodeMarkPayload.
func DecodeMarkPayload(valLen uint64, raw []byte) (name string, value common.Value, expand common.ExpandMark, err error) {
	tag := valLen & 0xF
	if tag != tagMarkPayload {
		return "", common.Value{}, 0, fmt.Errorf("columnar: expected mark payload tag, got %d", tag)
	}
	if len(raw) < 1 {
		return "", common.Value{}, 0, fmt.Errorf("columnar: truncated mark payload")
	}
	expand = common.ExpandMark(raw[0])
	raw = raw[1:]
	name, adv, err := consumeStr(raw)
	if err != nil {
		return "", common.Value{}, 0, err
	}
	raw = raw[adv:]
	innerLen, adv, err := consumeUvarint(raw)
	if err != nil {
		return "", common.Value{}, 0, err
	}
	raw = raw[adv:]
	value, err = DecodeValue(innerLen, raw)
	if err != nil {
		return "", common.Value{}, 0, err
	}
	return name, value, expand, nil
}

// EncodeUnmarkPayload packs an Unmark op's mark name.
func EncodeUnmarkPayload(name string) (valLen uint64, raw []byte) {
	raw = []byte(name)
	valLen = uint64(len(raw))<<4 | tagUnmarkPayload
	return valLen, raw
}

// DecodeUnmarkPayload reverses EncodeUnmarkPayload.
func DecodeUnmarkPayload(valLen uint64, raw []byte) (name string, err error) {
	tag := valLen & 0xF
	if tag != tagUnmarkPayload {
		return "", fmt.Errorf("columnar: expected unmark payload tag, got %d", tag)
	}
	return string(raw), nil
}
