package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/core/units"
)

// Problem is one structural schema error with its document position.
type Problem struct {
	Path    string
	Line    int
	Col     int
	Message string
}

func (p Problem) String() string {
	if p.Path == "" {
		return fmt.Sprintf("%d:%d: %s", p.Line, p.Col, p.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Col, p.Path, p.Message)
}

// BuildError accumulates every structural error found in one schema
// document, so verification mode can report them all at once.
type BuildError struct {
	Problems []Problem
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("schema errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Builder builds a Model from raw schema documents. Bound literals on
// physical-quantity properties are parsed against the unit registry, so
// a bound written in an incompatible unit fails here, before any data
// is touched.
type Builder struct {
	units *units.Registry
}

// NewBuilder creates a builder using the given unit registry.
func NewBuilder(reg *units.Registry) *Builder {
	return &Builder{units: reg}
}

// Build parses and builds a schema document.
func (b *Builder) Build(data []byte) (*Model, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	return b.BuildNode(&root)
}

// BuildNode builds a Model from an already-parsed document node.
func (b *Builder) BuildNode(root *yaml.Node) (*Model, error) {
	st := &buildState{units: b.units}

	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, &BuildError{Problems: []Problem{{Message: "empty schema document"}}}
		}
		doc = doc.Content[0]
	}

	model := &Model{byName: make(map[string]*Namespace)}

	if doc.Kind != yaml.MappingNode {
		st.addf(doc, "", "schema root must be a mapping with a definitions key")
		return nil, st.err()
	}

	var defs *yaml.Node
	forEachEntry(doc, func(key, value *yaml.Node) {
		if key.Value == "definitions" {
			defs = value
			return
		}
		st.addf(key, key.Value, "unknown root key (only definitions is allowed)")
	})
	if defs == nil {
		st.addf(doc, "", "missing definitions root key")
		return nil, st.err()
	}
	if defs.Kind != yaml.MappingNode {
		st.addf(defs, "definitions", "definitions must be a mapping of namespaces")
		return nil, st.err()
	}

	forEachEntry(defs, func(key, value *yaml.Node) {
		name := key.Value
		if !isIdentifier(name) {
			st.addf(key, name, "namespace name is not a valid identifier")
			return
		}
		if _, dup := model.byName[name]; dup {
			st.addf(key, name, "duplicate namespace")
			return
		}
		ns := st.buildNamespace(name, key, value)
		model.Namespaces = append(model.Namespaces, ns)
		model.byName[name] = ns
	})

	if err := st.err(); err != nil {
		return nil, err
	}
	return model, nil
}

type buildState struct {
	units    *units.Registry
	problems []Problem
}

func (st *buildState) addf(node *yaml.Node, path, format string, args ...any) {
	line, col := 0, 0
	if node != nil {
		line, col = node.Line, node.Column
	}
	st.problems = append(st.problems, Problem{
		Path:    path,
		Line:    line,
		Col:     col,
		Message: fmt.Sprintf(format, args...),
	})
}

func (st *buildState) err() error {
	if len(st.problems) == 0 {
		return nil
	}
	return &BuildError{Problems: st.problems}
}

func (st *buildState) buildNamespace(name string, key, body *yaml.Node) *Namespace {
	ns := &Namespace{
		Name:        name,
		Line:        key.Line,
		Col:         key.Column,
		typesByName: make(map[string]*TypeDef),
		enumsByName: make(map[string]*EnumDef),
	}

	if body.Kind != yaml.MappingNode {
		st.addf(body, name, "namespace body must be a mapping with types and/or enums")
		return ns
	}

	forEachEntry(body, func(k, v *yaml.Node) {
		switch k.Value {
		case "types":
			st.buildTypes(ns, v)
		case "enums":
			st.buildEnums(ns, v)
		default:
			st.addf(k, name+"."+k.Value, "unknown namespace key (want types or enums)")
		}
	})
	return ns
}

func (st *buildState) buildTypes(ns *Namespace, node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		st.addf(node, ns.Name+".types", "types must be a mapping")
		return
	}
	forEachEntry(node, func(k, v *yaml.Node) {
		name := k.Value
		path := ns.Name + "." + name
		if !isIdentifier(name) {
			st.addf(k, path, "type name is not a valid identifier")
			return
		}
		if _, dup := ns.typesByName[name]; dup {
			st.addf(k, path, "duplicate type name in namespace")
			return
		}
		if _, dup := ns.enumsByName[name]; dup {
			st.addf(k, path, "name already used by an enum in this namespace")
			return
		}
		td := st.buildType(ns.Name, name, k, v)
		ns.Types = append(ns.Types, td)
		ns.typesByName[name] = td
	})
}

func (st *buildState) buildType(nsName, name string, key, body *yaml.Node) *TypeDef {
	td := &TypeDef{
		Name:        name,
		Namespace:   nsName,
		Line:        key.Line,
		Col:         key.Column,
		propsByName: make(map[string]*PropertyDef),
	}
	path := td.QualifiedName()

	if body.Kind != yaml.MappingNode {
		st.addf(body, path, "type body must be a mapping")
		return td
	}

	var props, validators *yaml.Node
	forEachEntry(body, func(k, v *yaml.Node) {
		switch k.Value {
		case "properties":
			props = v
		case "validators":
			validators = v
		default:
			st.addf(k, path+"."+k.Value, "unknown type key (want properties or validators)")
		}
	})

	if props == nil {
		st.addf(body, path, "type has no properties")
		return td
	}
	if props.Kind != yaml.MappingNode {
		st.addf(props, path+".properties", "properties must be a mapping")
		return td
	}

	forEachEntry(props, func(k, v *yaml.Node) {
		pname := k.Value
		ppath := path + "." + pname
		if !isIdentifier(pname) {
			st.addf(k, ppath, "property name is not a valid identifier")
			return
		}
		if _, dup := td.propsByName[pname]; dup {
			st.addf(k, ppath, "duplicate property name")
			return
		}
		pd := st.buildProperty(pname, ppath, k, v)
		if pd == nil {
			return
		}
		td.Properties = append(td.Properties, pd)
		td.propsByName[pname] = pd
	})

	if validators != nil {
		st.buildValidators(td, path, validators)
	}
	return td
}

// propertyKeys is the full property-level key vocabulary.
var propertyKeys = map[string]bool{
	"type": true, "presence": true, "unique": true, "default": true,
	"gt": true, "ge": true, "lt": true, "le": true, "multiple_of": true,
	"exclude": true, "str_min": true, "str_max": true, "str_regex": true,
	"path_exists": true, "is_file": true, "is_dir": true, "file_ext": true,
	"url_protocols": true, "url_reachable": true,
}

func (st *buildState) buildProperty(name, path string, key, body *yaml.Node) *PropertyDef {
	pd := &PropertyDef{
		Name:     name,
		Presence: PresenceOptional,
		Line:     key.Line,
		Col:      key.Column,
	}

	// Shorthand: the body is just a type expression token.
	if body.Kind == yaml.ScalarNode {
		texpr, err := ParseTypeExpr(body.Value)
		if err != nil {
			st.addf(body, path, "%v", err)
			return nil
		}
		pd.Type = texpr
		return pd
	}

	if body.Kind != yaml.MappingNode {
		st.addf(body, path, "property must be a type token or a mapping")
		return nil
	}

	entries := make(map[string]*yaml.Node)
	forEachEntry(body, func(k, v *yaml.Node) {
		if !propertyKeys[k.Value] {
			st.addf(k, path, "unknown property key %q", k.Value)
			return
		}
		entries[k.Value] = v
	})

	typeNode, ok := entries["type"]
	if !ok {
		st.addf(body, path, "property has no type key")
		return nil
	}
	texpr, err := ParseTypeExpr(typeNode.Value)
	if err != nil {
		st.addf(typeNode, path, "%v", err)
		return nil
	}
	pd.Type = texpr

	if n, ok := entries["presence"]; ok {
		switch Presence(n.Value) {
		case PresenceOptional, PresenceRequired, PresencePreferred:
			pd.Presence = Presence(n.Value)
		default:
			st.addf(n, path, "invalid presence %q (want optional, required or preferred)", n.Value)
		}
	}

	if n, ok := entries["unique"]; ok {
		v, perr := strconv.ParseBool(n.Value)
		if perr != nil {
			st.addf(n, path, "unique must be a boolean")
		} else if v && !texpr.Scalar() {
			st.addf(n, path, "unique is only meaningful on scalar-typed properties, not %s", texpr)
		} else {
			pd.Unique = v
		}
	}

	if n, ok := entries["default"]; ok {
		var v any
		if derr := n.Decode(&v); derr != nil {
			st.addf(n, path, "invalid default: %v", derr)
		} else {
			pd.Default = v
		}
	}

	for _, kind := range []BoundKind{BoundGT, BoundGE, BoundLT, BoundLE, BoundMultipleOf} {
		n, ok := entries[string(kind)]
		if !ok {
			continue
		}
		bound, berr := st.parseBound(kind, texpr, n)
		if berr != nil {
			st.addf(n, path, "%s: %v", kind, berr)
			continue
		}
		pd.Bounds = append(pd.Bounds, bound)
	}

	if n, ok := entries["exclude"]; ok {
		if !texpr.Scalar() {
			st.addf(n, path, "exclude applies only to scalar-typed properties")
		} else if n.Kind != yaml.SequenceNode {
			st.addf(n, path, "exclude must be a sequence of values")
		} else {
			for _, item := range n.Content {
				var v any
				if derr := item.Decode(&v); derr != nil {
					st.addf(item, path, "invalid exclude value: %v", derr)
					continue
				}
				pd.Exclude = append(pd.Exclude, v)
			}
		}
	}

	st.buildStringChecks(pd, path, texpr, entries)
	st.buildPathChecks(pd, path, texpr, entries)
	st.buildURLChecks(pd, path, texpr, entries)

	return pd
}

func (st *buildState) buildStringChecks(pd *PropertyDef, path string, texpr *TypeExpr, entries map[string]*yaml.Node) {
	isStr := texpr.Kind == KindPrimitive && texpr.Primitive == PrimStr

	for _, k := range []string{"str_min", "str_max"} {
		n, ok := entries[k]
		if !ok {
			continue
		}
		if !isStr {
			st.addf(n, path, "%s applies only to str properties, not %s", k, texpr)
			continue
		}
		v, err := strconv.Atoi(n.Value)
		if err != nil || v < 0 {
			st.addf(n, path, "%s must be a non-negative integer", k)
			continue
		}
		if k == "str_min" {
			pd.StrMin = &v
		} else {
			pd.StrMax = &v
		}
	}

	if n, ok := entries["str_regex"]; ok {
		if !isStr {
			st.addf(n, path, "str_regex applies only to str properties, not %s", texpr)
			return
		}
		re, err := regexp.Compile(n.Value)
		if err != nil {
			st.addf(n, path, "invalid str_regex: %v", err)
			return
		}
		pd.StrRegex = re
	}
}

func (st *buildState) buildPathChecks(pd *PropertyDef, path string, texpr *TypeExpr, entries map[string]*yaml.Node) {
	isStr := texpr.Kind == KindPrimitive && texpr.Primitive == PrimStr

	for _, k := range []string{"path_exists", "is_file", "is_dir"} {
		n, ok := entries[k]
		if !ok {
			continue
		}
		if !isStr {
			st.addf(n, path, "%s applies only to str properties, not %s", k, texpr)
			continue
		}
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			st.addf(n, path, "%s must be a boolean", k)
			continue
		}
		switch k {
		case "path_exists":
			pd.PathExists = v
		case "is_file":
			pd.IsFile = v
		case "is_dir":
			pd.IsDir = v
		}
	}

	if n, ok := entries["file_ext"]; ok {
		if !isStr {
			st.addf(n, path, "file_ext applies only to str properties, not %s", texpr)
			return
		}
		if n.Kind != yaml.SequenceNode {
			st.addf(n, path, "file_ext must be a sequence of extensions")
			return
		}
		for _, item := range n.Content {
			ext := item.Value
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			pd.FileExt = append(pd.FileExt, ext)
		}
	}
}

func (st *buildState) buildURLChecks(pd *PropertyDef, path string, texpr *TypeExpr, entries map[string]*yaml.Node) {
	isStr := texpr.Kind == KindPrimitive && texpr.Primitive == PrimStr

	if n, ok := entries["url_protocols"]; ok {
		if !isStr {
			st.addf(n, path, "url_protocols applies only to str properties, not %s", texpr)
		} else if n.Kind != yaml.SequenceNode {
			st.addf(n, path, "url_protocols must be a sequence of schemes")
		} else {
			for _, item := range n.Content {
				pd.URLProtocols = append(pd.URLProtocols, strings.ToLower(item.Value))
			}
		}
	}

	if n, ok := entries["url_reachable"]; ok {
		if !isStr {
			st.addf(n, path, "url_reachable applies only to str properties, not %s", texpr)
			return
		}
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			st.addf(n, path, "url_reachable must be a boolean")
			return
		}
		pd.URLReachable = v
	}
}

// parseBound parses a bound literal against the property's type. The
// accepted forms follow the type: plain numbers for int/float, quantity
// literals for physical types, clock times for time, dates for
// date/datetime.
func (st *buildState) parseBound(kind BoundKind, texpr *TypeExpr, n *yaml.Node) (Bound, error) {
	bound := Bound{Kind: kind, Raw: n.Value}

	switch {
	case texpr.Kind == KindQuantity:
		q, err := st.units.ParseExpected(n.Value, texpr.Dimension)
		if err != nil {
			return Bound{}, err
		}
		bound.Quantity = &q
		return bound, nil

	case texpr.Kind == KindPrimitive && (texpr.Primitive == PrimInt || texpr.Primitive == PrimFloat):
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return Bound{}, fmt.Errorf("must be a number")
		}
		bound.Number = &f
		return bound, nil

	case texpr.Kind == KindPrimitive && texpr.Primitive == PrimTime:
		if kind == BoundMultipleOf {
			return Bound{}, fmt.Errorf("not applicable to time properties")
		}
		tod, err := units.ParseTimeOfDay(n.Value)
		if err != nil {
			return Bound{}, err
		}
		bound.Clock = &tod
		return bound, nil

	case texpr.Kind == KindPrimitive && (texpr.Primitive == PrimDate || texpr.Primitive == PrimDateTime):
		if kind == BoundMultipleOf {
			return Bound{}, fmt.Errorf("not applicable to %s properties", texpr.Primitive)
		}
		if texpr.Primitive == PrimDate {
			t, err := units.ParseDate(n.Value)
			if err != nil {
				return Bound{}, err
			}
			bound.Instant = &t
			return bound, nil
		}
		t, err := units.ParseDateTime(n.Value)
		if err != nil {
			return Bound{}, err
		}
		bound.Instant = &t
		return bound, nil

	default:
		return Bound{}, fmt.Errorf("not applicable to %s properties", texpr)
	}
}

func (st *buildState) buildValidators(td *TypeDef, path string, node *yaml.Node) {
	if node.Kind != yaml.SequenceNode {
		st.addf(node, path+".validators", "validators must be a sequence")
		return
	}

	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			st.addf(item, path+".validators", "each validator must be a single-key mapping")
			continue
		}
		key, body := item.Content[0], item.Content[1]
		vpath := path + ".validators." + key.Value

		tv := &TypeValidator{Line: key.Line, Col: key.Column}
		switch ValidatorKind(key.Value) {
		case ValidatorOnlyOne, ValidatorAtLeastOne:
			tv.Kind = ValidatorKind(key.Value)
			tv.Props = st.propList(td, vpath, body)
			if len(tv.Props) == 0 {
				continue
			}
		case ValidatorIfThen:
			tv.Kind = ValidatorIfThen
			clause := st.buildIfThen(td, vpath, body)
			if clause == nil {
				continue
			}
			tv.IfThen = clause
		case ValidatorExpr:
			tv.Kind = ValidatorExpr
			prog := st.buildExpr(vpath, body)
			if prog == nil {
				continue
			}
			tv.Expr = prog
		default:
			st.addf(key, vpath, "unknown validator %q", key.Value)
			continue
		}
		td.Validators = append(td.Validators, tv)
	}
}

// propList decodes a sequence of property names, each of which must
// exist on the type.
func (st *buildState) propList(td *TypeDef, path string, node *yaml.Node) []string {
	if node.Kind != yaml.SequenceNode {
		st.addf(node, path, "must be a sequence of property names")
		return nil
	}
	var names []string
	for _, item := range node.Content {
		if _, ok := td.propsByName[item.Value]; !ok {
			st.addf(item, path, "property %q is not declared on %s", item.Value, td.QualifiedName())
			continue
		}
		names = append(names, item.Value)
	}
	return names
}

func (st *buildState) buildIfThen(td *TypeDef, path string, node *yaml.Node) *IfThenClause {
	if node.Kind != yaml.MappingNode {
		st.addf(node, path, "if_then must be a mapping with eval, value, present, absent")
		return nil
	}

	clause := &IfThenClause{}
	ok := true
	forEachEntry(node, func(k, v *yaml.Node) {
		switch k.Value {
		case "eval":
			if _, declared := td.propsByName[v.Value]; !declared {
				st.addf(v, path, "eval property %q is not declared on %s", v.Value, td.QualifiedName())
				ok = false
				return
			}
			clause.Eval = v.Value
		case "value":
			if v.Kind != yaml.SequenceNode {
				st.addf(v, path, "value must be a sequence")
				ok = false
				return
			}
			for _, item := range v.Content {
				clause.Value = append(clause.Value, item.Value)
			}
		case "present":
			clause.Present = st.propList(td, path+".present", v)
		case "absent":
			clause.Absent = st.propList(td, path+".absent", v)
		default:
			st.addf(k, path, "unknown if_then key %q", k.Value)
			ok = false
		}
	})

	if clause.Eval == "" {
		st.addf(node, path, "if_then requires an eval property")
		ok = false
	}
	if len(clause.Value) == 0 {
		st.addf(node, path, "if_then requires a non-empty value set")
		ok = false
	}
	if !ok {
		return nil
	}
	return clause
}

// buildExpr compiles a boolean expression validator once at build time;
// a compile failure is a structural error.
func (st *buildState) buildExpr(path string, node *yaml.Node) *ExprProgram {
	if node.Kind != yaml.ScalarNode || strings.TrimSpace(node.Value) == "" {
		st.addf(node, path, "expr must be a non-empty expression string")
		return nil
	}
	prog, err := expr.Compile(node.Value, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		st.addf(node, path, "invalid expression: %v", err)
		return nil
	}
	return &ExprProgram{Source: node.Value, Program: prog}
}

func (st *buildState) buildEnums(ns *Namespace, node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		st.addf(node, ns.Name+".enums", "enums must be a mapping")
		return
	}
	forEachEntry(node, func(k, v *yaml.Node) {
		name := k.Value
		path := ns.Name + "." + name
		if !isIdentifier(name) {
			st.addf(k, path, "enum name is not a valid identifier")
			return
		}
		if _, dup := ns.enumsByName[name]; dup {
			st.addf(k, path, "duplicate enum name in namespace")
			return
		}
		if _, dup := ns.typesByName[name]; dup {
			st.addf(k, path, "name already used by a type in this namespace")
			return
		}
		if v.Kind != yaml.SequenceNode || len(v.Content) == 0 {
			st.addf(v, path, "enum must be a non-empty sequence of values")
			return
		}

		ed := &EnumDef{
			Name:      name,
			Namespace: ns.Name,
			Line:      k.Line,
			Col:       k.Column,
			valueSet:  make(map[string]struct{}),
		}
		for _, item := range v.Content {
			if item.Kind != yaml.ScalarNode {
				st.addf(item, path, "enum values must be scalars")
				continue
			}
			if _, dup := ed.valueSet[item.Value]; dup {
				st.addf(item, path, "duplicate enum value %q", item.Value)
				continue
			}
			ed.Values = append(ed.Values, item.Value)
			ed.valueSet[item.Value] = struct{}{}
		}
		ns.Enums = append(ns.Enums, ed)
		ns.enumsByName[name] = ed
	})
}

// forEachEntry iterates a mapping node's key/value pairs in document
// order.
func forEachEntry(node *yaml.Node, fn func(key, value *yaml.Node)) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn(node.Content[i], node.Content[i+1])
	}
}
