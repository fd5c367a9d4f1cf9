package columnar

// Encoding identifies which of the five column codecs (spec.md §4.B) a
// given column id uses.
type Encoding uint8

const (
	EncRLE Encoding = iota
	EncDeltaRLE
	EncBoolRun
	EncRaw
	EncStrRLE
)

// ColumnSpec is one (id, encoding) entry from spec.md §4.B's normative
// column tables.
type ColumnSpec struct {
	ID       uint64
	Name     string
	Encoding Encoding
}

// ChangeColumns is the bit-exact change-column table from spec.md §4.B, in
// ascending id order (the order the encoder writes them and the decoder
// expects them).
var ChangeColumns = []ColumnSpec{
	{1, "Actor", EncRLE},
	{3, "Seq", EncDeltaRLE},
	{19, "MaxOp", EncDeltaRLE},
	{35, "Time", EncDeltaRLE},
	{53, "Message", EncStrRLE},
	{64, "DepsNum", EncRLE},
	{67, "DepsIndex", EncDeltaRLE},
	{86, "ExtraLen", EncRLE},
	{87, "ExtraRaw", EncRaw},
}

// OpColumns is the bit-exact op-column table from spec.md §4.B, in
// ascending id order.
var OpColumns = []ColumnSpec{
	{1, "ObjActor", EncRLE},
	{2, "ObjCtr", EncRLE},
	{17, "KeyActor", EncRLE},
	{19, "KeyCtr", EncDeltaRLE},
	{21, "KeyStr", EncStrRLE},
	{33, "IdActor", EncRLE},
	{35, "IdCtr", EncDeltaRLE},
	{52, "Insert", EncBoolRun},
	{66, "Action", EncRLE},
	{86, "ValLen", EncRLE},
	{87, "ValRaw", EncRaw},
	{97, "ValRefActor", EncRLE},
	{98, "ValRefCtr", EncRLE},
	{128, "SuccNum", EncRLE},
	{129, "SuccActor", EncRLE},
	{131, "SuccCtr", EncDeltaRLE},
}

func columnByID(specs []ColumnSpec, id uint64) (ColumnSpec, bool) {
	for _, s := range specs {
		if s.ID == id {
			return s, true
		}
	}
	return ColumnSpec{}, false
}
