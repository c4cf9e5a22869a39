package value

import "testing"

func TestFalseyTruthy(t *testing.T) {
	cases := []struct {
		v      Value
		falsey bool
	}{
		{Null, true},
		{Bool(false), true},
		{Bool(true), false},
		{Number(0), false},
		{FromObj(NewString("")), false},
		{FromObj(NewList(nil)), false},
	}
	for _, c := range cases {
		if got := c.v.Falsey(); got != c.falsey {
			t.Errorf("Falsey(%v) = %v, want %v", c.v.GoString(), got, c.falsey)
		}
	}
}

func TestEqualListsElementwise(t *testing.T) {
	a := FromObj(NewList([]Value{Number(1), Number(2)}))
	b := FromObj(NewList([]Value{Number(1), Number(2)}))
	if !Equal(a, b) {
		t.Fatal("equal-valued distinct lists should compare == equal")
	}
	if Identity(a, b) {
		t.Fatal("distinct list objects should not be identical")
	}
}

func TestEqualScalars(t *testing.T) {
	if !Equal(Number(1), Number(1)) {
		t.Fatal("1 == 1")
	}
	if Equal(Number(1), Bool(true)) {
		t.Fatal("mismatched kinds are never equal")
	}
	if !Equal(Null, Null) {
		t.Fatal("null == null")
	}
}

func TestIdentityStrings(t *testing.T) {
	s := NewString("x")
	a := FromObj(s)
	b := FromObj(s)
	if !Identity(a, b) {
		t.Fatal("same interned string object should be identical")
	}
}

func TestIsIntegral(t *testing.T) {
	if !Number(3).IsIntegral() {
		t.Error("3 should be integral")
	}
	if Number(3.5).IsIntegral() {
		t.Error("3.5 should not be integral")
	}
}

func TestTypeName(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null, "null"},
		{Bool(true), "boolean"},
		{Number(1), "number"},
		{FromObj(NewString("s")), "string"},
		{FromObj(NewList(nil)), "list"},
	}
	for _, c := range cases {
		if got := c.v.TypeName(); got != c.want {
			t.Errorf("TypeName() = %q, want %q", got, c.want)
		}
	}
}
