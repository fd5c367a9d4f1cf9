package common

// ObjType enumerates the object kinds from spec.md §3.
type ObjType uint8

const (
	ObjTypeMap ObjType = iota
	ObjTypeList
	ObjTypeText
	ObjTypeTable
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeMap:
		return "map"
	case ObjTypeList:
		return "list"
	case ObjTypeText:
		return "text"
	case ObjTypeTable:
		return "table"
	default:
		return "unknown"
	}
}

func (t ObjType) IsSequence() bool { return t == ObjTypeList || t == ObjTypeText || t == ObjTypeTable }

// Key identifies a target within an object: a string for maps/tables, or an
// element id for lists/text (spec.md §3). HeadElem is the ROOT-HEAD
// sentinel naming the virtual position before a sequence's first element.
type Key struct {
	// MapKey is non-empty (and Elem is the zero OpId) when this is a map
	// key. For list/text keys, IsMap is false and Elem names the element
	// (or is the zero OpId for the virtual head).
	IsMap  bool
	MapKey string
	Elem   OpId
}

var HeadElem = OpId{}

func MapKeyOf(k string) Key { return Key{IsMap: true, MapKey: k} }
func ElemKeyOf(id OpId) Key { return Key{IsMap: false, Elem: id} }
func HeadKey() Key          { return Key{IsMap: false, Elem: HeadElem} }

func (k Key) IsHead() bool { return !k.IsMap && k.Elem == HeadElem }

func (k Key) String() string {
	if k.IsMap {
		return k.MapKey
	}
	if k.IsHead() {
		return "_head"
	}
	return k.Elem.String()
}

// Less gives map keys their UTF-8 byte order and element keys their OpId
// order, matching the two traversal orders spec.md §4.G defines for
// document-order op emission. Map keys sort before element keys is not a
// meaningful comparison (the two only ever compare within the same object
// kind); it is defined anyway so Key can key a google/btree index directly.
func (k Key) Less(other Key) bool {
	if k.IsMap != other.IsMap {
		return k.IsMap
	}
	if k.IsMap {
		return k.MapKey < other.MapKey
	}
	return k.Elem.Less(other.Elem)
}

func (k Key) Equal(other Key) bool {
	if k.IsMap != other.IsMap {
		return false
	}
	if k.IsMap {
		return k.MapKey == other.MapKey
	}
	return k.Elem == other.Elem
}
