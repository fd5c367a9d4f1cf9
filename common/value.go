package common

import "fmt"

// ValueKind is the datatype tag carried alongside a scalar payload,
// per spec.md §3. The numeric values are part of the columnar wire
// contract (they are packed into ValLen's low nibble, spec.md §4.B) and
// must never be renumbered.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat64
	KindStr
	KindBytes
	KindTimestamp
	KindCounter
	KindCursor
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat64:
		return "f64"
	case KindStr:
		return "str"
	case KindBytes:
		return "bytes"
	case KindTimestamp:
		return "timestamp"
	case KindCounter:
		return "counter"
	case KindCursor:
		return "cursor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Value is a tagged scalar. Exactly one of the typed fields is meaningful
// for a given Kind.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Uint  uint64
	Float float64
	Str   string
	Bytes []byte
	Cur   OpId // meaningful when Kind == KindCursor
}

func NullValue() Value           { return Value{Kind: KindNull} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func UintValue(u uint64) Value   { return Value{Kind: KindUint, Uint: u} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat64, Float: f} }
func StrValue(s string) Value    { return Value{Kind: KindStr, Str: s} }
func BytesValue(b []byte) Value  { return Value{Kind: KindBytes, Bytes: CopyBytes(b)} }
func TimestampValue(ms int64) Value {
	return Value{Kind: KindTimestamp, Int: ms}
}
func CounterValue(v int64) Value  { return Value{Kind: KindCounter, Int: v} }
func CursorValue(id OpId) Value   { return Value{Kind: KindCursor, Cur: id} }

func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt, KindTimestamp, KindCounter:
		return v.Int == other.Int
	case KindUint:
		return v.Uint == other.Uint
	case KindFloat64:
		return v.Float == other.Float
	case KindStr:
		return v.Str == other.Str
	case KindBytes:
		return string(v.Bytes) == string(other.Bytes)
	case KindCursor:
		return v.Cur == other.Cur
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt, KindTimestamp, KindCounter:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat64:
		return fmt.Sprintf("%g", v.Float)
	case KindStr:
		return v.Str
	case KindBytes:
		return fmt.Sprintf("%x", v.Bytes)
	case KindCursor:
		return v.Cur.String()
	default:
		return "<invalid>"
	}
}
