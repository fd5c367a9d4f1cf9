package document

import (
	"github.com/ledgerwatch/turbocrdt/common"
	"github.com/ledgerwatch/turbocrdt/opset"
)

// PathToken is one step of a Patch's path: a map key or a list index
// (spec.md §6: "path is a list of string | int tokens").
type PathToken struct {
	Key   string
	Index int
	IsKey bool
}

func KeyToken(k string) PathToken { return PathToken{Key: k, IsKey: true} }
func IndexToken(i int) PathToken  { return PathToken{Index: i} }

// PatchKind is one of the taxonomy spec.md §6 names.
type PatchKind uint8

const (
	PatchPut PatchKind = iota
	PatchInsert
	PatchSplice
	PatchDel
	PatchInc
	PatchMark
	PatchUnmark
	PatchConflict
)

// Patch is one event of the ordered stream Diff produces (spec.md §4.E
// "Patch generation", §6 taxonomy). Only the fields relevant to Kind are
// populated; the rest are zero.
type Patch struct {
	Kind     PatchKind
	Path     []PathToken
	Value    common.Value   // Put, Inc
	Values   []common.Value // Insert
	Length   int            // Del (elements removed)
	Conflict bool           // Put: more than one value was visible at this key
	Name     string         // Mark, Unmark
	Start    int            // Mark, Unmark: character range
	End      int
	Expand   common.ExpandMark // Mark
}

func appendPath(path []PathToken, tok PathToken) []PathToken {
	out := make([]PathToken, len(path)+1)
	copy(out, path)
	out[len(path)] = tok
	return out
}

// Diff computes the materialized-value difference between before and
// after as an ordered Patch stream (spec.md §4.E). It is not a minimal
// (LCS-style) diff — a sequence element present at both heads but with a
// changed value is reported as Put rather than folded into a
// move/splice — but every reported event is correct and the stream is
// sufficient to replay `before`'s materialization into `after`'s, which
// is the contract SPEC_FULL §3's Diff/Log accessors and the `diff` CLI
// subcommand need.
func (d *Document) Diff(before, after []common.ChangeHash) []Patch {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Patch
	d.diffObject(common.RootObject, nil, before, after, &out)
	return out
}

func (d *Document) diffObject(obj common.ObjectId, path []PathToken, before, after []common.ChangeHash, out *[]Patch) {
	kind, ok := d.index.ObjectKind(obj)
	if !ok {
		return
	}
	switch kind {
	case common.ObjTypeMap, common.ObjTypeTable:
		d.diffMap(obj, path, before, after, out)
	case common.ObjTypeText:
		d.diffText(obj, path, before, after, out)
	case common.ObjTypeList:
		d.diffList(obj, path, before, after, out)
	}
}

func (d *Document) diffMap(obj common.ObjectId, path []PathToken, before, after []common.ChangeHash, out *[]Patch) {
	beforeKeys := map[string]bool{}
	for _, k := range d.index.Keys(obj, before) {
		beforeKeys[k] = true
	}
	afterKeys := d.index.Keys(obj, after)
	afterSet := map[string]bool{}

	for _, k := range afterKeys {
		afterSet[k] = true
		v, id, ok := d.index.Get(obj, common.MapKeyOf(k), after)
		if !ok {
			continue
		}
		childPath := appendPath(path, KeyToken(k))

		if _, isObj := d.index.ObjectKind(id); isObj {
			d.diffObject(id, childPath, before, after, out)
			continue
		}

		bv, bid, bok := d.index.Get(obj, common.MapKeyOf(k), before)
		if bok && bid == id && bv.Equal(v) {
			continue
		}
		conflictN := len(d.index.GetAll(obj, common.MapKeyOf(k), after))
		*out = append(*out, Patch{Kind: PatchPut, Path: childPath, Value: v, Conflict: conflictN > 1})
	}

	for k := range beforeKeys {
		if !afterSet[k] {
			*out = append(*out, Patch{Kind: PatchDel, Path: appendPath(path, KeyToken(k)), Length: 1})
		}
	}
}

func (d *Document) diffList(obj common.ObjectId, path []PathToken, before, after []common.ChangeHash, out *[]Patch) {
	beforeIds := d.index.ElementIds(obj, before)
	afterIds := d.index.ElementIds(obj, after)

	beforeSet := map[common.OpId]int{}
	for i, id := range beforeIds {
		beforeSet[id] = i
	}
	afterSet := map[common.OpId]bool{}

	for i, id := range afterIds {
		afterSet[id] = true
		childPath := appendPath(path, IndexToken(i))

		if _, wasVisible := beforeSet[id]; !wasVisible {
			v, _, ok := d.index.Get(obj, common.ElemKeyOf(id), after)
			if !ok {
				continue
			}
			if _, isObj := d.index.ObjectKind(id); isObj {
				*out = append(*out, Patch{Kind: PatchInsert, Path: childPath, Values: []common.Value{v}})
				d.diffObject(id, childPath, nil, after, out)
				continue
			}
			*out = append(*out, Patch{Kind: PatchInsert, Path: childPath, Values: []common.Value{v}})
			continue
		}

		if _, isObj := d.index.ObjectKind(id); isObj {
			d.diffObject(id, childPath, before, after, out)
			continue
		}
		va, _, aok := d.index.Get(obj, common.ElemKeyOf(id), after)
		vb, _, bok := d.index.Get(obj, common.ElemKeyOf(id), before)
		if aok && (!bok || !va.Equal(vb)) {
			*out = append(*out, Patch{Kind: PatchPut, Path: childPath, Value: va})
		}
	}

	// Deletions are reported at their position in the `before` sequence,
	// since that is the only index at which the removed element still
	// existed — `after` has nothing to address it by.
	for i, id := range beforeIds {
		if !afterSet[id] {
			*out = append(*out, Patch{Kind: PatchDel, Path: appendPath(path, IndexToken(i)), Length: 1})
		}
	}
}

func (d *Document) diffText(obj common.ObjectId, path []PathToken, before, after []common.ChangeHash, out *[]Patch) {
	beforeText := d.index.TextAt(obj, before)
	afterText := d.index.TextAt(obj, after)
	if beforeText != afterText {
		*out = append(*out, Patch{
			Kind: PatchSplice, Path: path,
			Value:  common.StrValue(afterText),
			Length: len([]rune(beforeText)),
		})
	}

	beforeMarks := map[markKey]common.Value{}
	for _, m := range d.index.Marks(obj, before) {
		beforeMarks[markKeyOf(m)] = m.Value
	}
	afterMarksList := d.index.Marks(obj, after)
	afterMarks := map[markKey]common.Value{}
	ids := d.index.ElementIds(obj, after)
	pos := make(map[common.OpId]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	for _, m := range afterMarksList {
		k := markKeyOf(m)
		afterMarks[k] = m.Value
		if v, had := beforeMarks[k]; had && v.Equal(m.Value) {
			continue
		}
		start, end := pos[m.Start], pos[m.End]
		*out = append(*out, Patch{Kind: PatchMark, Path: path, Name: m.Name, Value: m.Value, Start: start, End: end, Expand: 0})
	}
	for k := range beforeMarks {
		if _, still := afterMarks[k]; !still {
			*out = append(*out, Patch{Kind: PatchUnmark, Path: path, Name: k.name, Start: k.start, End: k.end})
		}
	}
}

type markKey struct {
	name       string
	start, end common.OpId
}

func markKeyOf(m opset.MarkSpan) markKey { return markKey{name: m.Name, start: m.Start, end: m.End} }
