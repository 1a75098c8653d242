package schema

import (
	"testing"

	"github.com/artpar/yasl/core/units"
)

func TestParseTypeExpr(t *testing.T) {
	tests := []struct {
		in   string
		want string // round-tripped String()
		kind Kind
	}{
		{"str", "str", KindPrimitive},
		{"int", "int", KindPrimitive},
		{"time", "time", KindPrimitive},
		{"length", "length", KindQuantity},
		{"pressure", "pressure", KindQuantity},
		{"Status", "Status", KindNamed},
		{"core.Person", "core.Person", KindNamed},
		{"list[str]", "list[str]", KindList},
		{"list[list[int]]", "list[list[int]]", KindList},
		{"map[str,int]", "map[str,int]", KindMap},
		{"map[str,list[float]]", "map[str,list[float]]", KindMap},
		{"ref[Person]", "ref[Person]", KindRef},
		{"ref[hr.Person]", "ref[hr.Person]", KindRef},
		{" list[ str ] ", "list[str]", KindList},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTypeExpr(tt.in)
			if err != nil {
				t.Fatalf("ParseTypeExpr(%q) error: %v", tt.in, err)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.kind)
			}
			if got.String() != tt.want {
				t.Errorf("String() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestParseTypeExprQuantityDimensions(t *testing.T) {
	got, err := ParseTypeExpr("velocity")
	if err != nil {
		t.Fatalf("ParseTypeExpr(velocity) error: %v", err)
	}
	if got.Dimension != units.Velocity {
		t.Errorf("Dimension = %s, want velocity", got.Dimension)
	}
}

func TestParseTypeExprErrors(t *testing.T) {
	bad := []string{
		"",
		"list[",
		"list[]",
		"map[str]",
		"map[list[str],int]", // map key must be a primitive scalar
		"map[float,str]",
		"ref[]",
		"ref[list[str]]",
		"a.b.c",
		"no spaces",
		"123abc",
	}

	for _, in := range bad {
		if _, err := ParseTypeExpr(in); err == nil {
			t.Errorf("ParseTypeExpr(%q) expected error", in)
		}
	}
}

func TestTypeExprScalar(t *testing.T) {
	scalar := []string{"str", "length", "Status"}
	for _, in := range scalar {
		e, _ := ParseTypeExpr(in)
		if !e.Scalar() {
			t.Errorf("%q should be scalar", in)
		}
	}

	notScalar := []string{"list[str]", "map[str,int]", "ref[Person]"}
	for _, in := range notScalar {
		e, _ := ParseTypeExpr(in)
		if e.Scalar() {
			t.Errorf("%q should not be scalar", in)
		}
	}
}
