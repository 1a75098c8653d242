// Package resolve links the names in a schema model: enum and type
// references in property type expressions are bound to their
// definitions, producing a closed Graph for the validation engine.
//
// Resolution is a flat name lookup over the model's namespaces, never a
// recursive instantiation, so self-referential and mutually-referential
// type graphs are legal and terminate.
package resolve

import (
	"fmt"
	"strings"

	"github.com/artpar/yasl/core/schema"
)

// Resolved is the binding of one named type expression node: exactly
// one of Enum or Type is set. For ref expressions, Type is the target
// and KeyProperty is the target's first unique-marked property, which
// reference values must match.
type Resolved struct {
	Enum        *schema.EnumDef
	Type        *schema.TypeDef
	KeyProperty *schema.PropertyDef
}

// Graph is the fully linked schema: every name reference bound, no
// dangling lookups remaining.
type Graph struct {
	Model *schema.Model

	types    map[string]*schema.TypeDef
	enums    map[string]*schema.EnumDef
	byBare   map[string][]*schema.TypeDef
	bindings map[*schema.TypeExpr]Resolved
}

// ResolveError accumulates every resolution failure in the model.
type ResolveError struct {
	Problems []schema.Problem
}

func (e *ResolveError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.String()
	}
	return fmt.Sprintf("resolve errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Resolve links every property type expression in the model.
func Resolve(model *schema.Model) (*Graph, error) {
	g := &Graph{
		Model:    model,
		types:    make(map[string]*schema.TypeDef),
		enums:    make(map[string]*schema.EnumDef),
		byBare:   make(map[string][]*schema.TypeDef),
		bindings: make(map[*schema.TypeExpr]Resolved),
	}

	for _, ns := range model.Namespaces {
		for _, td := range ns.Types {
			g.types[td.QualifiedName()] = td
			g.byBare[td.Name] = append(g.byBare[td.Name], td)
		}
		for _, ed := range ns.Enums {
			g.enums[ed.QualifiedName()] = ed
		}
	}

	var problems []schema.Problem
	for _, ns := range model.Namespaces {
		for _, td := range ns.Types {
			for _, pd := range td.Properties {
				path := td.QualifiedName() + "." + pd.Name
				problems = append(problems, g.resolveExpr(ns, pd, pd.Type, path)...)
			}
		}
	}

	if len(problems) > 0 {
		return nil, &ResolveError{Problems: problems}
	}
	return g, nil
}

func (g *Graph) resolveExpr(ns *schema.Namespace, pd *schema.PropertyDef, e *schema.TypeExpr, path string) []schema.Problem {
	problem := func(format string, args ...any) []schema.Problem {
		return []schema.Problem{{
			Path:    path,
			Line:    pd.Line,
			Col:     pd.Col,
			Message: fmt.Sprintf(format, args...),
		}}
	}

	switch e.Kind {
	case schema.KindPrimitive, schema.KindQuantity:
		return nil

	case schema.KindNamed:
		if ed, td, ok := g.lookup(ns, e.Name); ok {
			if ed != nil {
				g.bindings[e] = Resolved{Enum: ed}
				return nil
			}
			if pd.Unique && pd.Type == e {
				// unique only makes sense on scalar values; a nested
				// composite type is not one.
				return problem("unique is only meaningful on scalar-typed properties, not type %s", td.QualifiedName())
			}
			g.bindings[e] = Resolved{Type: td}
			return nil
		}
		return problem("unresolved reference to %q", e.Name)

	case schema.KindRef:
		ed, td, ok := g.lookup(ns, e.Name)
		if !ok {
			return problem("unresolved reference target %q", e.Name)
		}
		if ed != nil {
			return problem("ref target %q is an enum, want a type", e.Name)
		}
		keyProp := uniqueKeyProperty(td)
		if keyProp == nil {
			return problem("invalid reference target: type %s declares no unique property", td.QualifiedName())
		}
		g.bindings[e] = Resolved{Type: td, KeyProperty: keyProp}
		return nil

	case schema.KindList:
		return g.resolveExpr(ns, pd, e.Elem, path)

	case schema.KindMap:
		// Map keys are primitive scalars, checked at parse time.
		return g.resolveExpr(ns, pd, e.Elem, path)

	default:
		return problem("unknown type expression kind")
	}
}

// lookup resolves a written name: unqualified names search the owning
// namespace only, dot-qualified names search the named namespace.
func (g *Graph) lookup(own *schema.Namespace, name string) (*schema.EnumDef, *schema.TypeDef, bool) {
	ns := own
	local := name
	if i := strings.IndexByte(name, '.'); i >= 0 {
		nsName, rest := name[:i], name[i+1:]
		other, ok := g.Model.Namespace(nsName)
		if !ok {
			return nil, nil, false
		}
		ns, local = other, rest
	}

	if ed, ok := ns.Enum(local); ok {
		return ed, nil, true
	}
	if td, ok := ns.Type(local); ok {
		return nil, td, true
	}
	return nil, nil, false
}

// uniqueKeyProperty returns the first declared unique-marked property.
func uniqueKeyProperty(td *schema.TypeDef) *schema.PropertyDef {
	for _, pd := range td.Properties {
		if pd.Unique {
			return pd
		}
	}
	return nil
}

// Binding returns the resolution of a named or ref type expression.
func (g *Graph) Binding(e *schema.TypeExpr) (Resolved, bool) {
	r, ok := g.bindings[e]
	return r, ok
}

// Type looks up a type by qualified name ("ns.Name") or, when the bare
// name is unambiguous across namespaces, by bare name.
func (g *Graph) Type(name string) (*schema.TypeDef, error) {
	if td, ok := g.types[name]; ok {
		return td, nil
	}
	if candidates, ok := g.byBare[name]; ok {
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		var quals []string
		for _, td := range candidates {
			quals = append(quals, td.QualifiedName())
		}
		return nil, fmt.Errorf("ambiguous type name %q (matches %s)", name, strings.Join(quals, ", "))
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// Types returns every type keyed by qualified name.
func (g *Graph) Types() map[string]*schema.TypeDef {
	return g.types
}

// UniqueKey returns the key property reference values of td must match.
func (g *Graph) UniqueKey(td *schema.TypeDef) *schema.PropertyDef {
	return uniqueKeyProperty(td)
}
