package common

import "testing"

func TestOpIdOrdering(t *testing.T) {
	a := OpId{Counter: 1, Actor: "aaaa"}
	b := OpId{Counter: 1, Actor: "bbbb"}
	c := OpId{Counter: 2, Actor: "aaaa"}

	if !a.Less(b) {
		t.Errorf("expected %s < %s", a, b)
	}
	if !a.Less(c) {
		t.Errorf("expected %s < %s (counter dominates)", a, c)
	}
	if b.Less(a) {
		t.Errorf("did not expect %s < %s", b, a)
	}
}

func TestOpIdRoot(t *testing.T) {
	if !Root.IsRoot() {
		t.Errorf("expected Root.IsRoot()")
	}
	other := OpId{Counter: 1, Actor: "aaaa"}
	if other.IsRoot() {
		t.Errorf("did not expect %s to be root", other)
	}
}

func TestActorIdLess(t *testing.T) {
	a, err := NewActorId([]byte{0x01})
	if err != nil {
		t.Fatalf("NewActorId: %v", err)
	}
	b, err := NewActorId([]byte{0x02})
	if err != nil {
		t.Fatalf("NewActorId: %v", err)
	}
	if !a.Less(b) {
		t.Errorf("expected %s < %s", a, b)
	}
}

func TestActorTooLong(t *testing.T) {
	if _, err := NewActorId(make([]byte, MaxActorLen+1)); err != ErrActorTooLong {
		t.Errorf("expected ErrActorTooLong, got %v", err)
	}
}

func TestClockUnionAndLessOrEqual(t *testing.T) {
	a1, _ := NewActorId([]byte{0x01})
	a2, _ := NewActorId([]byte{0x02})

	c1 := NewClock()
	c1.Advance(a1, 3)
	c2 := NewClock()
	c2.Advance(a1, 2)
	c2.Advance(a2, 5)

	u := c1.Union(c2)
	if u.Get(a1) != 3 || u.Get(a2) != 5 {
		t.Errorf("unexpected union: %v", u)
	}
	if !c2.LessOrEqual(u) {
		t.Errorf("expected c2 <= union")
	}
	if !c1.LessOrEqual(u) {
		t.Errorf("expected c1 <= union")
	}
	if u.LessOrEqual(c1) {
		t.Errorf("did not expect union <= c1")
	}
}

func TestHashSetEqual(t *testing.T) {
	var h1, h2 ChangeHash
	h1[0] = 1
	h2[0] = 2
	s1 := NewHashSet(h1, h2)
	s2 := NewHashSet(h2, h1)
	if !s1.Equal(s2) {
		t.Errorf("expected equal sets regardless of insertion order")
	}
}

func TestKeyOrdering(t *testing.T) {
	k1 := MapKeyOf("a")
	k2 := MapKeyOf("b")
	if !k1.Less(k2) {
		t.Errorf("expected key a < b")
	}
	if !HeadKey().IsHead() {
		t.Errorf("expected HeadKey to report IsHead")
	}
}

func TestValueEqual(t *testing.T) {
	if !IntValue(5).Equal(IntValue(5)) {
		t.Errorf("expected equal int values")
	}
	if IntValue(5).Equal(UintValue(5)) {
		t.Errorf("did not expect int to equal uint (datatype tag must differ)")
	}
}
