package change

import (
	"fmt"

	"github.com/ledgerwatch/turbocrdt/columnar"
	"github.com/ledgerwatch/turbocrdt/common"
)

// encodeOpColumns writes c.Ops as the op-columns group from spec.md §4.B.
//
// One column pair in that table needs a resolution this codec records as
// an explicit decision (see DESIGN.md): spec.md's prose says succ "is
// maintained in the index; not in the wire format" (§3), yet the only
// per-op reference-set columns the table names are SuccNum/SuccActor/
// SuccCtr — there is no separate Pred column triple, even though pred *is*
// specified as part of the wire change record. Since succ is always
// derivable by replaying pred across the whole op-set and pred is not
// otherwise representable on the wire, this codec stores each op's Pred
// set under the SuccNum/SuccActor/SuccCtr columns; succ itself is never
// serialized and is rebuilt by the op-set index when a change is applied.
func encodeOpColumns(ops []common.Op, at *actorTable) []byte {
	n := len(ops)
	objActor := make([]*uint64, n)
	objCtr := make([]*uint64, n)
	keyActor := make([]*uint64, n)
	keyCtr := make([]*uint64, n)
	keyStr := make([]*string, n)
	idActor := make([]*uint64, n)
	idCtr := make([]*uint64, n)
	insert := make([]bool, n)
	action := make([]*uint64, n)
	valRefActor := make([]*uint64, n)
	valRefCtr := make([]*uint64, n)
	valLen := make([]*uint64, n)
	predNum := make([]*uint64, n)
	var valRaw []byte
	var predActorFlat, predCtrFlat []uint64

	for i, op := range ops {
		if !op.Obj.IsRoot() {
			oa, oc := at.idOf(op.Obj.Actor), op.Obj.Counter
			objActor[i], objCtr[i] = &oa, &oc
		}
		switch {
		case op.Key.IsMap:
			s := op.Key.MapKey
			keyStr[i] = &s
		case !op.Key.IsHead():
			ka, kc := at.idOf(op.Key.Elem.Actor), op.Key.Elem.Counter
			keyActor[i], keyCtr[i] = &ka, &kc
		}
		ia, ic := at.idOf(op.ID.Actor), op.ID.Counter
		idActor[i], idCtr[i] = &ia, &ic
		insert[i] = op.Insert
		a := uint64(op.Action)
		action[i] = &a

		var vl uint64
		var raw []byte
		switch op.Action {
		case common.ActionSet:
			vl, raw = columnar.EncodeValue(op.Value)
		case common.ActionIncrement:
			vl, raw = columnar.EncodeValue(common.IntValue(op.Delta))
		case common.ActionMark:
			vl, raw = columnar.EncodeMarkPayload(op.Mark, op.MarkValue, op.Expand)
			ra, rc := at.idOf(op.MarkEnd.Actor), op.MarkEnd.Counter
			valRefActor[i], valRefCtr[i] = &ra, &rc
		case common.ActionUnmark:
			vl, raw = columnar.EncodeUnmarkPayload(op.Mark)
			ra, rc := at.idOf(op.MarkEnd.Actor), op.MarkEnd.Counter
			valRefActor[i], valRefCtr[i] = &ra, &rc
		default:
			vl, raw = 0, nil
		}
		valLen[i] = &vl
		valRaw = append(valRaw, raw...)

		pred := sortedOpIds(op.Pred.Slice())
		pn := uint64(len(pred))
		predNum[i] = &pn
		for _, id := range pred {
			pa := at.idOf(id.Actor)
			predActorFlat = append(predActorFlat, pa)
			predCtrFlat = append(predCtrFlat, id.Counter)
		}
	}

	cols := map[uint64][]byte{
		1:   columnar.EncodeRLE(objActor),
		2:   columnar.EncodeRLE(objCtr),
		17:  columnar.EncodeRLE(keyActor),
		19:  columnar.EncodeDeltaRLE(keyCtr),
		21:  columnar.EncodeStrRLE(keyStr),
		33:  columnar.EncodeRLE(idActor),
		35:  columnar.EncodeDeltaRLE(idCtr),
		52:  columnar.EncodeBoolRLE(insert),
		66:  columnar.EncodeRLE(action),
		86:  columnar.EncodeRLE(valLen),
		87:  valRaw,
		97:  columnar.EncodeRLE(valRefActor),
		98:  columnar.EncodeRLE(valRefCtr),
		128: columnar.EncodeRLE(predNum),
		129: columnar.EncodeRLE(u64pSlice(predActorFlat)),
		131: columnar.EncodeDeltaRLE(u64pSlice(predCtrFlat)),
	}

	body := appendUvarint(nil, uint64(n))
	body = append(body, columnar.EncodeGroup(cols)...)
	return body
}

func decodeOpColumns(data []byte, actors []common.ActorId) ([]common.Op, error) {
	n, adv, err := consumeUvarint(data)
	if err != nil {
		return nil, err
	}
	data = data[adv:]

	cols, err := columnar.DecodeGroup(data)
	if err != nil {
		return nil, err
	}

	objActor, err := columnar.DecodeRLE(cols[1], int(n))
	if err != nil {
		return nil, err
	}
	objCtr, err := columnar.DecodeRLE(cols[2], int(n))
	if err != nil {
		return nil, err
	}
	keyActor, err := columnar.DecodeRLE(cols[17], int(n))
	if err != nil {
		return nil, err
	}
	keyCtr, err := columnar.DecodeDeltaRLE(cols[19], int(n))
	if err != nil {
		return nil, err
	}
	keyStr, err := columnar.DecodeStrRLE(cols[21], int(n))
	if err != nil {
		return nil, err
	}
	idActor, err := columnar.DecodeRLE(cols[33], int(n))
	if err != nil {
		return nil, err
	}
	idCtr, err := columnar.DecodeDeltaRLE(cols[35], int(n))
	if err != nil {
		return nil, err
	}
	insert, err := columnar.DecodeBoolRLE(cols[52], int(n))
	if err != nil {
		return nil, err
	}
	action, err := columnar.DecodeRLE(cols[66], int(n))
	if err != nil {
		return nil, err
	}
	valLen, err := columnar.DecodeRLE(cols[86], int(n))
	if err != nil {
		return nil, err
	}
	valRefActor, err := columnar.DecodeRLE(cols[97], int(n))
	if err != nil {
		return nil, err
	}
	valRefCtr, err := columnar.DecodeRLE(cols[98], int(n))
	if err != nil {
		return nil, err
	}
	predNum, err := columnar.DecodeRLE(cols[128], int(n))
	if err != nil {
		return nil, err
	}

	totalPred := 0
	for _, p := range predNum {
		totalPred += int(derefOr(p, 0))
	}
	predActorFlat, err := columnar.DecodeRLE(cols[129], totalPred)
	if err != nil {
		return nil, err
	}
	predCtrFlat, err := columnar.DecodeDeltaRLE(cols[131], totalPred)
	if err != nil {
		return nil, err
	}

	ops := make([]common.Op, n)
	predOff := 0
	valRaw := cols[87]
	valOff := 0
	for i := uint64(0); i < n; i++ {
		op := common.Op{}

		if objActor[i] != nil {
			if int(*objActor[i]) >= len(actors) {
				return nil, &UnknownActorError{Column: "ObjActor", Index: int(*objActor[i]), Actors: len(actors)}
			}
			op.Obj = common.OpId{Counter: derefOr(objCtr[i], 0), Actor: actors[*objActor[i]]}
		} else {
			op.Obj = common.RootObject
		}

		switch {
		case keyStr[i] != nil:
			op.Key = common.MapKeyOf(*keyStr[i])
		case keyActor[i] != nil:
			if int(*keyActor[i]) >= len(actors) {
				return nil, &UnknownActorError{Column: "KeyActor", Index: int(*keyActor[i]), Actors: len(actors)}
			}
			op.Key = common.ElemKeyOf(common.OpId{Counter: derefOr(keyCtr[i], 0), Actor: actors[*keyActor[i]]})
		default:
			op.Key = common.HeadKey()
		}

		if idActor[i] == nil {
			return nil, &UnknownActorError{Column: "IdActor", Index: -1, Actors: len(actors)}
		}
		if int(*idActor[i]) >= len(actors) {
			return nil, &UnknownActorError{Column: "IdActor", Index: int(*idActor[i]), Actors: len(actors)}
		}
		op.ID = common.OpId{Counter: derefOr(idCtr[i], 0), Actor: actors[*idActor[i]]}
		op.Insert = insert[i]
		if action[i] == nil {
			return nil, fmt.Errorf("change: missing Action for op %d", i)
		}
		op.Action = common.OpAction(*action[i])

		vl := derefOr(valLen[i], 0)
		rawLen := int(vl >> 4)
		if valOff+rawLen > len(valRaw) {
			return nil, fmt.Errorf("change: ValRaw truncated")
		}
		raw := valRaw[valOff : valOff+rawLen]
		valOff += rawLen

		switch op.Action {
		case common.ActionSet:
			v, err := columnar.DecodeValue(vl, raw)
			if err != nil {
				return nil, err
			}
			op.Value = v
		case common.ActionIncrement:
			v, err := columnar.DecodeValue(vl, raw)
			if err != nil {
				return nil, err
			}
			op.Delta = v.Int
		case common.ActionMark:
			name, value, expand, err := columnar.DecodeMarkPayload(vl, raw)
			if err != nil {
				return nil, err
			}
			op.Mark, op.MarkValue, op.Expand = name, value, expand
			if valRefActor[i] == nil {
				return nil, &UnknownActorError{Column: "ValRefActor(mark)", Index: -1, Actors: len(actors)}
			}
			if int(*valRefActor[i]) >= len(actors) {
				return nil, &UnknownActorError{Column: "ValRefActor(mark)", Index: int(*valRefActor[i]), Actors: len(actors)}
			}
			op.MarkEnd = common.OpId{Counter: derefOr(valRefCtr[i], 0), Actor: actors[*valRefActor[i]]}
		case common.ActionUnmark:
			name, err := columnar.DecodeUnmarkPayload(vl, raw)
			if err != nil {
				return nil, err
			}
			op.Mark = name
			if valRefActor[i] == nil {
				return nil, &UnknownActorError{Column: "ValRefActor(unmark)", Index: -1, Actors: len(actors)}
			}
			if int(*valRefActor[i]) >= len(actors) {
				return nil, &UnknownActorError{Column: "ValRefActor(unmark)", Index: int(*valRefActor[i]), Actors: len(actors)}
			}
			op.MarkEnd = common.OpId{Counter: derefOr(valRefCtr[i], 0), Actor: actors[*valRefActor[i]]}
		}

		pn := int(derefOr(predNum[i], 0))
		pred := common.NewOpIdSet()
		for k := 0; k < pn; k++ {
			pa := predActorFlat[predOff+k]
			pc := predCtrFlat[predOff+k]
			if pa == nil {
				return nil, &UnknownActorError{Column: "Pred", Index: -1, Actors: len(actors)}
			}
			if int(*pa) >= len(actors) {
				return nil, &UnknownActorError{Column: "Pred", Index: int(*pa), Actors: len(actors)}
			}
			pred.Add(common.OpId{Counter: derefOr(pc, 0), Actor: actors[*pa]})
		}
		predOff += pn
		op.Pred = pred
		op.Succ = common.NewOpIdSet()

		ops[i] = op
	}
	return ops, nil
}
