package schema

import (
	"regexp"
	"time"

	"github.com/expr-lang/expr/vm"

	"github.com/artpar/yasl/core/units"
)

// Model is the built schema: every namespace with its types and enums,
// nothing resolved across names yet. Immutable after Build.
type Model struct {
	Namespaces []*Namespace

	byName map[string]*Namespace
}

// Namespace groups types and enums under one name.
type Namespace struct {
	Name  string
	Types []*TypeDef
	Enums []*EnumDef
	Line  int
	Col   int

	typesByName map[string]*TypeDef
	enumsByName map[string]*EnumDef
}

// TypeDef declares an ordered set of properties plus type-level
// validators.
type TypeDef struct {
	Name       string
	Namespace  string
	Properties []*PropertyDef
	Validators []*TypeValidator
	Line       int
	Col        int

	propsByName map[string]*PropertyDef
}

// QualifiedName returns "namespace.Name".
func (t *TypeDef) QualifiedName() string {
	return t.Namespace + "." + t.Name
}

// Property looks up a property by name.
func (t *TypeDef) Property(name string) (*PropertyDef, bool) {
	p, ok := t.propsByName[name]
	return p, ok
}

// EnumDef declares an ordered set of distinct string values.
type EnumDef struct {
	Name      string
	Namespace string
	Values    []string
	Line      int
	Col       int

	valueSet map[string]struct{}
}

// QualifiedName returns "namespace.Name".
func (e *EnumDef) QualifiedName() string {
	return e.Namespace + "." + e.Name
}

// Has reports whether v is one of the enum's values.
func (e *EnumDef) Has(v string) bool {
	_, ok := e.valueSet[v]
	return ok
}

// Presence is the property presence policy.
type Presence string

const (
	PresenceOptional  Presence = "optional"
	PresenceRequired  Presence = "required"
	PresencePreferred Presence = "preferred"
)

// PropertyDef declares one property of a type: its type expression,
// presence policy and attached validators.
type PropertyDef struct {
	Name     string
	Type     *TypeExpr
	Presence Presence
	Unique   bool
	Default  any // decoded YAML scalar/sequence/mapping, nil when absent

	Bounds   []Bound
	Exclude  []any
	StrMin   *int
	StrMax   *int
	StrRegex *regexp.Regexp

	PathExists bool
	IsFile     bool
	IsDir      bool
	FileExt    []string

	URLProtocols []string
	URLReachable bool

	Line int
	Col  int
}

// BoundKind names a numeric bound validator key.
type BoundKind string

const (
	BoundGT         BoundKind = "gt"
	BoundGE         BoundKind = "ge"
	BoundLT         BoundKind = "lt"
	BoundLE         BoundKind = "le"
	BoundMultipleOf BoundKind = "multiple_of"
)

// Op maps the bound to its comparison operator. Not meaningful for
// multiple_of.
func (k BoundKind) Op() units.Op {
	switch k {
	case BoundGT:
		return units.OpGT
	case BoundGE:
		return units.OpGE
	case BoundLT:
		return units.OpLT
	case BoundLE:
		return units.OpLE
	default:
		return ""
	}
}

// Bound is a parsed numeric bound. Exactly one of the value fields is
// set, matching the property's type: Number for int/float, Quantity for
// physical types, Clock for time, Instant for date/datetime.
type Bound struct {
	Kind     BoundKind
	Raw      string
	Number   *float64
	Quantity *units.Quantity
	Clock    *units.TimeOfDay
	Instant  *time.Time
}

// ValidatorKind names a type-level validator.
type ValidatorKind string

const (
	ValidatorOnlyOne    ValidatorKind = "only_one"
	ValidatorAtLeastOne ValidatorKind = "at_least_one"
	ValidatorIfThen     ValidatorKind = "if_then"
	ValidatorExpr       ValidatorKind = "expr"
)

// TypeValidator is one type-level validator attached to a TypeDef.
type TypeValidator struct {
	Kind   ValidatorKind
	Props  []string      // only_one / at_least_one
	IfThen *IfThenClause // if_then
	Expr   *ExprProgram  // expr
	Line   int
	Col    int
}

// IfThenClause is a conditional presence rule: when the eval property's
// value is in Value, every Present property must be present and every
// Absent property absent. The clause is skipped when eval is absent.
type IfThenClause struct {
	Eval    string
	Value   []string
	Present []string
	Absent  []string
}

// ExprProgram is a compiled boolean expression over a record's
// property values.
type ExprProgram struct {
	Source  string
	Program *vm.Program
}

// Namespace looks up a namespace by name.
func (m *Model) Namespace(name string) (*Namespace, bool) {
	ns, ok := m.byName[name]
	return ns, ok
}

// Type looks up a type by namespace-local name.
func (ns *Namespace) Type(name string) (*TypeDef, bool) {
	t, ok := ns.typesByName[name]
	return t, ok
}

// Enum looks up an enum by namespace-local name.
func (ns *Namespace) Enum(name string) (*EnumDef, bool) {
	e, ok := ns.enumsByName[name]
	return e, ok
}
