package validate

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/schema"
)

// uniqKey addresses one unique-marked property of one type.
type uniqKey struct {
	typeQN string
	prop   string
}

// pendingRef is a deferred ref[T] check, resolved in pass 2 once the
// whole document has been indexed, so forward references are legal.
type pendingRef struct {
	target  *schema.TypeDef
	keyProp *schema.PropertyDef
	value   string
	loc     report.Location
}

// run is the per-run engine state: the uniqueness index built during
// the prescan and the deferred reference checks collected during pass 1.
// It is created at the start of a validation run and discarded at the
// end, never shared across runs.
type run struct {
	engine *Engine

	uniq  map[uniqKey]map[string]report.Location
	dupes []report.Violation

	mu   sync.Mutex
	refs []pendingRef
}

func newRun(e *Engine) *run {
	return &run{
		engine: e,
		uniq:   make(map[uniqKey]map[string]report.Location),
	}
}

// prescanRecord indexes every unique-marked value in one record,
// descending into nested types, lists and maps. Runs sequentially in
// document order before pass 1, so the first occurrence of a value is
// well defined. Shape problems are ignored here; pass 1 reports them.
func (rn *run) prescanRecord(td *schema.TypeDef, node *yaml.Node, path string) {
	if node.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		pd, ok := td.Property(key.Value)
		if !ok || isNull(value) {
			continue
		}
		rn.prescanValue(td, pd, pd.Type, value, path+"."+key.Value)
	}

	// Defaulted unique values participate in uniqueness too.
	for _, pd := range td.Properties {
		if !pd.Unique || pd.Default == nil {
			continue
		}
		if _, present := recordProperty(node, pd.Name); present {
			continue
		}
		rn.index(td, pd, fmt.Sprint(pd.Default), report.Location{
			Path: path + "." + pd.Name, Line: node.Line, Col: node.Column,
		})
	}
}

func (rn *run) prescanValue(td *schema.TypeDef, pd *schema.PropertyDef, texpr *schema.TypeExpr, node *yaml.Node, path string) {
	switch texpr.Kind {
	case schema.KindPrimitive, schema.KindQuantity:
		if pd.Unique && texpr == pd.Type && node.Kind == yaml.ScalarNode {
			rn.index(td, pd, node.Value, report.Location{Path: path, Line: node.Line, Col: node.Column})
		}

	case schema.KindNamed:
		binding, ok := rn.engine.graph.Binding(texpr)
		if !ok {
			return
		}
		if binding.Enum != nil {
			if pd.Unique && texpr == pd.Type && node.Kind == yaml.ScalarNode {
				rn.index(td, pd, node.Value, report.Location{Path: path, Line: node.Line, Col: node.Column})
			}
			return
		}
		rn.prescanRecord(binding.Type, node, path)

	case schema.KindList:
		if node.Kind != yaml.SequenceNode {
			return
		}
		for i, item := range node.Content {
			rn.prescanValue(td, pd, texpr.Elem, item, fmt.Sprintf("%s[%d]", path, i))
		}

	case schema.KindMap:
		if node.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			rn.prescanValue(td, pd, texpr.Elem, node.Content[i+1], path+"."+node.Content[i].Value)
		}
	}
}

// index records one unique value. The first occurrence is kept; every
// later equal value becomes a violation referencing both locations.
func (rn *run) index(td *schema.TypeDef, pd *schema.PropertyDef, value string, loc report.Location) {
	key := uniqKey{typeQN: td.QualifiedName(), prop: pd.Name}
	seen, ok := rn.uniq[key]
	if !ok {
		seen = make(map[string]report.Location)
		rn.uniq[key] = seen
	}
	if first, dup := seen[value]; dup {
		firstLoc := first
		rn.dupes = append(rn.dupes, report.Violation{
			Path: loc.Path, Line: loc.Line, Col: loc.Col,
			Rule: report.RuleUnique, Severity: report.SeverityError,
			Message: fmt.Sprintf("duplicate value %q for unique property %s.%s", value, td.QualifiedName(), pd.Name),
			Related: &firstLoc,
		})
		return
	}
	seen[value] = loc
}

// deferRef queues a reference value for pass 2. Called from pass 1
// workers, hence the lock.
func (rn *run) deferRef(target *schema.TypeDef, keyProp *schema.PropertyDef, node *yaml.Node, path string) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	rn.refs = append(rn.refs, pendingRef{
		target:  target,
		keyProp: keyProp,
		value:   node.Value,
		loc:     report.Location{Path: path, Line: node.Line, Col: node.Column},
	})
}

// checkRefs resolves every deferred reference against the uniqueness
// index. A value matching no indexed unique value anywhere in the
// document is a dangling reference.
func (rn *run) checkRefs(rpt *report.Report) {
	for _, ref := range rn.refs {
		key := uniqKey{typeQN: ref.target.QualifiedName(), prop: ref.keyProp.Name}
		if _, ok := rn.uniq[key][ref.value]; ok {
			continue
		}
		rpt.Add(report.Violation{
			Path: ref.loc.Path, Line: ref.loc.Line, Col: ref.loc.Col,
			Rule: report.RuleDanglingReference, Severity: report.SeverityError,
			Message: fmt.Sprintf("no %s with %s == %q exists in the document", ref.target.QualifiedName(), ref.keyProp.Name, ref.value),
		})
	}
}

// recordProperty finds a property node in a record mapping.
func recordProperty(node *yaml.Node, name string) (*yaml.Node, bool) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return node.Content[i+1], true
		}
	}
	return nil, false
}
