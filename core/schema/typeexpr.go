package schema

import (
	"fmt"
	"strings"

	"github.com/artpar/yasl/core/units"
)

// Kind discriminates the closed set of type expression shapes.
type Kind int

const (
	KindPrimitive Kind = iota
	KindQuantity
	KindNamed // enum or type reference, decided during resolution
	KindList
	KindMap
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindQuantity:
		return "quantity"
	case KindNamed:
		return "named"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Primitive is a scalar primitive type token.
type Primitive string

const (
	PrimStr      Primitive = "str"
	PrimInt      Primitive = "int"
	PrimFloat    Primitive = "float"
	PrimBool     Primitive = "bool"
	PrimDate     Primitive = "date"
	PrimTime     Primitive = "time" // clock time-of-day, never unit-converted
	PrimDateTime Primitive = "datetime"
	PrimUUID     Primitive = "uuid"
)

func isPrimitive(token string) bool {
	switch Primitive(token) {
	case PrimStr, PrimInt, PrimFloat, PrimBool, PrimDate, PrimTime, PrimDateTime, PrimUUID:
		return true
	default:
		return false
	}
}

// TypeExpr is one node of a property type expression. Exactly the fields
// implied by Kind are set; Name holds the written (possibly dot-qualified)
// identifier for KindNamed and KindRef.
type TypeExpr struct {
	Kind      Kind
	Primitive Primitive
	Dimension units.Dimension
	Name      string
	Key       *TypeExpr // map key
	Elem      *TypeExpr // list element / map value
}

// String renders the expression back to its written form.
func (e *TypeExpr) String() string {
	switch e.Kind {
	case KindPrimitive:
		return string(e.Primitive)
	case KindQuantity:
		return string(e.Dimension)
	case KindNamed:
		return e.Name
	case KindList:
		return fmt.Sprintf("list[%s]", e.Elem)
	case KindMap:
		return fmt.Sprintf("map[%s,%s]", e.Key, e.Elem)
	case KindRef:
		return fmt.Sprintf("ref[%s]", e.Name)
	default:
		return "?"
	}
}

// Scalar reports whether the expression denotes a single scalar value
// (primitive, quantity or named enum/type used as enum). Used by the
// unique/ref applicability rules.
func (e *TypeExpr) Scalar() bool {
	switch e.Kind {
	case KindPrimitive, KindQuantity, KindNamed:
		return true
	default:
		return false
	}
}

// ParseTypeExpr parses a type expression token such as "str",
// "pressure", "Status", "core.Person", "list[str]", "map[str,int]" or
// "ref[Person]".
func ParseTypeExpr(text string) (*TypeExpr, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("empty type expression")
	}

	switch {
	case strings.HasPrefix(s, "list[") && strings.HasSuffix(s, "]"):
		inner := s[len("list[") : len(s)-1]
		elem, err := ParseTypeExpr(inner)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return &TypeExpr{Kind: KindList, Elem: elem}, nil

	case strings.HasPrefix(s, "map[") && strings.HasSuffix(s, "]"):
		inner := s[len("map[") : len(s)-1]
		key, rest, ok := splitMapArgs(inner)
		if !ok {
			return nil, fmt.Errorf("map type %q needs two arguments", s)
		}
		keyExpr, err := ParseTypeExpr(key)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		if !mapKeyAllowed(keyExpr) {
			return nil, fmt.Errorf("map key %q must be a primitive scalar", key)
		}
		elemExpr, err := ParseTypeExpr(rest)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return &TypeExpr{Kind: KindMap, Key: keyExpr, Elem: elemExpr}, nil

	case strings.HasPrefix(s, "ref[") && strings.HasSuffix(s, "]"):
		target := strings.TrimSpace(s[len("ref[") : len(s)-1])
		if !isIdentifierPath(target) {
			return nil, fmt.Errorf("ref target %q is not a type name", target)
		}
		return &TypeExpr{Kind: KindRef, Name: target}, nil

	case isPrimitive(s):
		return &TypeExpr{Kind: KindPrimitive, Primitive: Primitive(s)}, nil

	case units.IsDimension(s):
		return &TypeExpr{Kind: KindQuantity, Dimension: units.Dimension(s)}, nil

	case isIdentifierPath(s):
		return &TypeExpr{Kind: KindNamed, Name: s}, nil

	default:
		return nil, fmt.Errorf("unrecognized type token %q", s)
	}
}

// splitMapArgs splits "K,V" at the top-level comma, tolerating nested
// brackets in V (map[str,list[int]]).
func splitMapArgs(s string) (key, value string, ok bool) {
	depth := 0
	for i, c := range s {
		switch c {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

func mapKeyAllowed(e *TypeExpr) bool {
	if e.Kind != KindPrimitive {
		return false
	}
	switch e.Primitive {
	case PrimStr, PrimInt, PrimUUID, PrimDate:
		return true
	default:
		return false
	}
}

// isIdentifierPath accepts "Name" or "namespace.Name".
func isIdentifierPath(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !isIdentifier(p) {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}
	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
