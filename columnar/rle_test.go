package columnar

import (
	"bytes"
	"testing"
)

func u64p(v uint64) *uint64 { return &v }

func TestRLERoundTrip(t *testing.T) {
	in := []*uint64{u64p(5), u64p(5), u64p(5), nil, nil, u64p(1), u64p(2), u64p(3), u64p(3)}
	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	assertUint64PtrSliceEqual(t, in, out)
}

func TestRLEAllNull(t *testing.T) {
	in := []*uint64{nil, nil, nil}
	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	assertUint64PtrSliceEqual(t, in, out)
}

func TestDeltaRLERoundTrip(t *testing.T) {
	in := []*uint64{u64p(10), u64p(11), u64p(12), nil, u64p(20), u64p(5)}
	enc := EncodeDeltaRLE(in)
	out, err := DecodeDeltaRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeDeltaRLE: %v", err)
	}
	assertUint64PtrSliceEqual(t, in, out)
}

func TestBoolRLERoundTrip(t *testing.T) {
	in := []bool{false, false, true, true, true, false, true}
	enc := EncodeBoolRLE(in)
	out, err := DecodeBoolRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeBoolRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func TestBoolRLEStartsTrue(t *testing.T) {
	in := []bool{true, true, false}
	enc := EncodeBoolRLE(in)
	out, err := DecodeBoolRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeBoolRLE: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v want %v", i, out[i], in[i])
		}
	}
}

func strp(s string) *string { return &s }

func TestStrRLERoundTrip(t *testing.T) {
	in := []*string{strp("a"), strp("a"), nil, strp("bb"), strp("ccc"), strp("ccc")}
	enc := EncodeStrRLE(in)
	out, err := DecodeStrRLE(enc, len(in))
	if err != nil {
		t.Fatalf("DecodeStrRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if (in[i] == nil) != (out[i] == nil) {
			t.Fatalf("index %d: nil mismatch", i)
		}
		if in[i] != nil && *in[i] != *out[i] {
			t.Errorf("index %d: got %q want %q", i, *out[i], *in[i])
		}
	}
}

func TestRawRoundTrip(t *testing.T) {
	values := [][]byte{[]byte("hello"), {}, []byte("x"), []byte("world!!")}
	data, lens := EncodeRaw(values)
	out, err := DecodeRaw(data, lens)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if len(out) != len(values) {
		t.Fatalf("length mismatch")
	}
	for i := range values {
		if !bytes.Equal(values[i], out[i]) {
			t.Errorf("index %d: got %v want %v", i, out[i], values[i])
		}
	}
}

func assertUint64PtrSliceEqual(t *testing.T, want, got []*uint64) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if (want[i] == nil) != (got[i] == nil) {
			t.Fatalf("index %d: nil mismatch, want %v got %v", i, want[i], got[i])
		}
		if want[i] != nil && *want[i] != *got[i] {
			t.Errorf("index %d: got %d want %d", i, *got[i], *want[i])
		}
	}
}
