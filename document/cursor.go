package document

import "github.com/ledgerwatch/turbocrdt/common"

// Cursor is a stable reference to one sequence element, captured at one
// heads and resolvable back to a (possibly different) logical index after
// the document has mutated further (SPEC_FULL §3: cursor resolution).
// It is distinct from common.Value's KindCursor scalar, which is the
// wire-level payload one op can carry; Cursor is the document-level
// handle a caller holds onto across edits.
type Cursor struct {
	Obj  common.ObjectId
	Elem common.OpId
}

// AsValue packs the cursor as a KindCursor scalar, for storing it inside
// the document itself (spec.md §3 lists cursor among Value's kinds).
func (c Cursor) AsValue() common.Value { return common.CursorValue(c.Elem) }

// Cursor captures a stable reference to the element currently at index
// (spec.md §9: cursor resolution; SPEC_FULL §3).
func (d *Document) Cursor(obj common.ObjectId, index int, heads ...common.ChangeHash) (Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	kind, ok := d.index.ObjectKind(obj)
	if !ok {
		return Cursor{}, &InvalidObjectIdError{Obj: obj.String()}
	}
	if !kind.IsSequence() {
		return Cursor{}, &WrongObjectKindError{Obj: obj.String(), Want: "list/text/table", Have: kind.String()}
	}
	elemID, err := d.elemAtLocked(obj, index, heads)
	if err != nil {
		return Cursor{}, err
	}
	return Cursor{Obj: obj, Elem: elemID}, nil
}

// CursorPosition resolves cur back to a live logical index under heads.
// An element that is no longer visible, or whose actor this document has
// never heard of, fails closed with ErrInvalidCursor rather than
// guessing a nearby position (spec.md §9: "fail closed on unknown cursor
// encodings").
func (d *Document) CursorPosition(cur Cursor, heads ...common.ChangeHash) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.index.HasObject(cur.Obj) {
		return -1, &InvalidObjectIdError{Obj: cur.Obj.String()}
	}
	for i, id := range d.index.ElementIds(cur.Obj, heads) {
		if id == cur.Elem {
			return i, nil
		}
	}
	return -1, ErrInvalidCursor
}

// Span is one run of text sharing an identical active mark set — the v1
// "spans of strings" read-compatibility shape layered over the v2
// TextAt+Marks representation (spec.md §9 Open Questions; SPEC_FULL §3).
type Span struct {
	Text  string
	Marks map[string]common.Value
}

// SpansAt groups a text object's visible characters into Span runs,
// purely as a derived read view: there is no v1 write path, matching
// §9's guidance to expose v1 "only as a read-compatibility layer".
func (d *Document) SpansAt(obj common.ObjectId, heads ...common.ChangeHash) ([]Span, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	kind, ok := d.index.ObjectKind(obj)
	if !ok {
		return nil, &InvalidObjectIdError{Obj: obj.String()}
	}
	if kind != common.ObjTypeText {
		return nil, &WrongObjectKindError{Obj: obj.String(), Want: "text", Have: kind.String()}
	}

	ids := d.index.ElementIds(obj, heads)
	pos := make(map[common.OpId]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	marks := d.index.Marks(obj, heads)

	activeAt := func(i int) map[string]common.Value {
		var active map[string]common.Value
		for _, sp := range marks {
			s, okS := pos[sp.Start]
			e, okE := pos[sp.End]
			if !okS || !okE || i < s || i > e {
				continue
			}
			if active == nil {
				active = map[string]common.Value{}
			}
			active[sp.Name] = sp.Value
		}
		return active
	}

	var spans []Span
	var curText []byte
	var curMarks map[string]common.Value
	haveCur := false
	flush := func() {
		if haveCur {
			spans = append(spans, Span{Text: string(curText), Marks: curMarks})
		}
		curText, curMarks, haveCur = nil, nil, false
	}
	for i, id := range ids {
		v, _, found := d.index.Get(obj, common.ElemKeyOf(id), heads)
		if !found || v.Kind != common.KindStr {
			continue
		}
		m := activeAt(i)
		if !haveCur || !markSetsEqual(curMarks, m) {
			flush()
			curMarks, haveCur = m, true
		}
		curText = append(curText, v.Str...)
	}
	flush()
	return spans, nil
}

func markSetsEqual(a, b map[string]common.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}
