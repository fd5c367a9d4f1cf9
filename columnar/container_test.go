package columnar

import (
	"bytes"
	"testing"

	"github.com/ledgerwatch/turbocrdt/common"
)

func TestContainerRoundTrip(t *testing.T) {
	chunk := []byte("hello, column world")
	container := WriteContainer(BlockSingleChange, chunk)

	bt, got, consumed, err := ReadContainer(container)
	if err != nil {
		t.Fatalf("ReadContainer: %v", err)
	}
	if bt != BlockSingleChange {
		t.Errorf("got block type %d want %d", bt, BlockSingleChange)
	}
	if !bytes.Equal(got, chunk) {
		t.Errorf("got chunk %q want %q", got, chunk)
	}
	if consumed != len(container) {
		t.Errorf("consumed %d want %d", consumed, len(container))
	}
}

func TestContainerBadMagic(t *testing.T) {
	container := WriteContainer(BlockFullDoc, []byte("x"))
	container[0] ^= 0xFF
	if _, _, _, err := ReadContainer(container); err != ErrBadMagic {
		t.Errorf("got %v want ErrBadMagic", err)
	}
}

func TestContainerChecksumMismatch(t *testing.T) {
	container := WriteContainer(BlockFullDoc, []byte("abc"))
	container[len(container)-1] ^= 0xFF
	if _, _, _, err := ReadContainer(container); err != ErrChecksumMismatch {
		t.Errorf("got %v want ErrChecksumMismatch", err)
	}
}

func TestGroupRoundTrip(t *testing.T) {
	cols := map[uint64][]byte{
		1:  EncodeRLE([]*uint64{u64p(1), u64p(1), u64p(2)}),
		19: EncodeDeltaRLE([]*uint64{u64p(10), u64p(20)}),
		86: nil, // empty column must be omitted
	}
	encoded := EncodeGroup(cols)
	decoded, err := DecodeGroup(encoded)
	if err != nil {
		t.Fatalf("DecodeGroup: %v", err)
	}
	if _, present := decoded[86]; present {
		t.Errorf("expected empty column 86 to be omitted")
	}
	if !bytes.Equal(decoded[1], cols[1]) {
		t.Errorf("column 1 mismatch")
	}
	if !bytes.Equal(decoded[19], cols[19]) {
		t.Errorf("column 19 mismatch")
	}
}

func TestValueCodecRoundTrip(t *testing.T) {
	actor, _ := common.NewActorId([]byte{0xAB, 0xCD})
	cases := []common.Value{
		common.NullValue(),
		common.BoolValue(true),
		common.BoolValue(false),
		common.IntValue(-12345),
		common.UintValue(98765),
		common.FloatValue(3.14159),
		common.StrValue("hello crdt"),
		common.BytesValue([]byte{1, 2, 3}),
		common.TimestampValue(1690000000000),
		common.CounterValue(42),
		common.CursorValue(common.OpId{Counter: 7, Actor: actor}),
	}
	for _, v := range cases {
		valLen, raw := EncodeValue(v)
		got, err := DecodeValue(valLen, raw)
		if err != nil {
			t.Fatalf("DecodeValue(%v): %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("round trip mismatch: got %v want %v", got, v)
		}
	}
}

func TestMarkPayloadRoundTrip(t *testing.T) {
	valLen, raw := EncodeMarkPayload("bold", common.BoolValue(true), common.ExpandBoth)
	name, value, expand, err := DecodeMarkPayload(valLen, raw)
	if err != nil {
		t.Fatalf("DecodeMarkPayload: %v", err)
	}
	if name != "bold" || expand != common.ExpandBoth {
		t.Errorf("got (%q, %v) want (\"bold\", ExpandBoth)", name, expand)
	}
	if value.Kind != common.KindBool || !value.Bool {
		t.Errorf("got value %+v want bool true", value)
	}

	valLen, raw = EncodeUnmarkPayload("bold")
	name, err = DecodeUnmarkPayload(valLen, raw)
	if err != nil {
		t.Fatalf("DecodeUnmarkPayload: %v", err)
	}
	if name != "bold" {
		t.Errorf("got %q want \"bold\"", name)
	}
}
