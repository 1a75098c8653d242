package validate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/schema"
	"github.com/artpar/yasl/core/units"
)

// checkValue checks one value node against a resolved type expression,
// recursing through lists, maps and nested types. Property validators
// apply when the expression is the property's own scalar type.
func (e *Engine) checkValue(ctx context.Context, rn *run, rpt *report.Report, pd *schema.PropertyDef, texpr *schema.TypeExpr, node *yaml.Node, path string) {
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	switch texpr.Kind {
	case schema.KindPrimitive:
		if node.Kind != yaml.ScalarNode {
			add(report.RuleType, "must be a %s scalar", texpr.Primitive)
			return
		}
		if !e.checkPrimitive(rpt, texpr.Primitive, node, path) {
			return
		}
		if texpr == pd.Type {
			e.checkScalarValidators(ctx, rpt, pd, node, path)
		}

	case schema.KindQuantity:
		if node.Kind != yaml.ScalarNode {
			add(report.RuleType, "must be a %s quantity", texpr.Dimension)
			return
		}
		q, err := e.units.ParseExpected(node.Value, texpr.Dimension)
		if err != nil {
			add(report.RuleType, "invalid %s quantity: %v", texpr.Dimension, err)
			return
		}
		if texpr == pd.Type {
			e.checkQuantityValidators(rpt, pd, q, node, path)
		}

	case schema.KindNamed:
		binding, ok := e.graph.Binding(texpr)
		if !ok {
			add(report.RuleType, "unbound type expression %s", texpr)
			return
		}
		if binding.Enum != nil {
			if node.Kind != yaml.ScalarNode {
				add(report.RuleEnum, "must be one of: %s", strings.Join(binding.Enum.Values, ", "))
				return
			}
			if !binding.Enum.Has(node.Value) {
				add(report.RuleEnum, "%q is not one of: %s", node.Value, strings.Join(binding.Enum.Values, ", "))
			}
			return
		}
		// Nested record of another type.
		rpt.Merge(e.validateRecord(ctx, rn, binding.Type, node, path))

	case schema.KindList:
		if node.Kind != yaml.SequenceNode {
			add(report.RuleType, "must be a sequence of %s", texpr.Elem)
			return
		}
		for i, item := range node.Content {
			e.checkValue(ctx, rn, rpt, pd, texpr.Elem, item, fmt.Sprintf("%s[%d]", path, i))
		}

	case schema.KindMap:
		if node.Kind != yaml.MappingNode {
			add(report.RuleType, "must be a mapping of %s to %s", texpr.Key, texpr.Elem)
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			e.checkPrimitive(rpt, texpr.Key.Primitive, key, path+"."+key.Value)
			e.checkValue(ctx, rn, rpt, pd, texpr.Elem, value, path+"."+key.Value)
		}

	case schema.KindRef:
		if node.Kind != yaml.ScalarNode {
			add(report.RuleType, "reference must be a scalar value")
			return
		}
		binding, ok := e.graph.Binding(texpr)
		if !ok {
			add(report.RuleType, "unbound reference %s", texpr)
			return
		}
		// Target existence is a dataset-wide question: defer until the
		// whole document has been indexed.
		rn.deferRef(binding.Type, binding.KeyProperty, node, path)
	}
}

// checkPrimitive checks a scalar against a primitive kind. Returns
// false when the shape is wrong.
func (e *Engine) checkPrimitive(rpt *report.Report, prim schema.Primitive, node *yaml.Node, path string) bool {
	fail := func(format string, args ...any) bool {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: report.RuleType, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
		return false
	}

	switch prim {
	case schema.PrimStr:
		if node.Tag != "!!str" {
			return fail("must be a string")
		}
	case schema.PrimInt:
		if _, err := strconv.ParseInt(node.Value, 10, 64); err != nil {
			return fail("must be an integer")
		}
	case schema.PrimFloat:
		if _, err := strconv.ParseFloat(node.Value, 64); err != nil {
			return fail("must be a number")
		}
	case schema.PrimBool:
		if node.Tag != "!!bool" {
			return fail("must be a boolean")
		}
	case schema.PrimUUID:
		if _, err := uuid.Parse(node.Value); err != nil {
			return fail("must be a UUID")
		}
	case schema.PrimDate:
		if _, err := units.ParseDate(node.Value); err != nil {
			return fail("%v", err)
		}
	case schema.PrimTime:
		if _, err := units.ParseTimeOfDay(node.Value); err != nil {
			return fail("%v", err)
		}
	case schema.PrimDateTime:
		if _, err := units.ParseDateTime(node.Value); err != nil {
			return fail("%v", err)
		}
	}
	return true
}

// checkScalarValidators applies the property's attached validators to a
// primitive scalar value.
func (e *Engine) checkScalarValidators(ctx context.Context, rpt *report.Report, pd *schema.PropertyDef, node *yaml.Node, path string) {
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	switch pd.Type.Primitive {
	case schema.PrimInt, schema.PrimFloat:
		f, _ := strconv.ParseFloat(node.Value, 64)
		for _, b := range pd.Bounds {
			if b.Number == nil {
				continue
			}
			if b.Kind == schema.BoundMultipleOf {
				if *b.Number != 0 {
					ratio := f / *b.Number
					if math.Abs(ratio-math.Round(ratio)) > 1e-9*math.Max(1, math.Abs(ratio)) {
						add(report.Rule(b.Kind), "must be a multiple of %v", *b.Number)
					}
				}
				continue
			}
			if !compareFloats(f, *b.Number, b.Kind) {
				add(report.Rule(b.Kind), "must be %s %v", boundPhrase(b.Kind), *b.Number)
			}
		}
		for _, excl := range pd.Exclude {
			if ef, err := toFloat(excl); err == nil && ef == f {
				add(report.RuleExclude, "value %v is excluded", excl)
			}
		}

	case schema.PrimTime:
		tod, _ := units.ParseTimeOfDay(node.Value)
		for _, b := range pd.Bounds {
			if b.Clock == nil {
				continue
			}
			if !compareInts(tod.Compare(*b.Clock), b.Kind) {
				add(report.Rule(b.Kind), "must be %s %s", boundPhrase(b.Kind), b.Clock)
			}
		}

	case schema.PrimDate, schema.PrimDateTime:
		var val time.Time
		if pd.Type.Primitive == schema.PrimDate {
			val, _ = units.ParseDate(node.Value)
		} else {
			val, _ = units.ParseDateTime(node.Value)
		}
		for _, b := range pd.Bounds {
			if b.Instant == nil {
				continue
			}
			if !compareInts(val.Compare(*b.Instant), b.Kind) {
				add(report.Rule(b.Kind), "must be %s %s", boundPhrase(b.Kind), b.Raw)
			}
		}

	case schema.PrimStr:
		s := node.Value
		if pd.StrMin != nil && len(s) < *pd.StrMin {
			add(report.RuleStrMin, "must be at least %d characters", *pd.StrMin)
		}
		if pd.StrMax != nil && len(s) > *pd.StrMax {
			add(report.RuleStrMax, "must be at most %d characters", *pd.StrMax)
		}
		if pd.StrRegex != nil && !pd.StrRegex.MatchString(s) {
			add(report.RuleStrRegex, "does not match pattern %s", pd.StrRegex)
		}
		for _, excl := range pd.Exclude {
			if fmt.Sprint(excl) == s {
				add(report.RuleExclude, "value %q is excluded", s)
			}
		}
		e.checkPathValidators(rpt, pd, node, path)
		e.checkURLValidators(ctx, rpt, pd, node, path)

	default:
		for _, excl := range pd.Exclude {
			if fmt.Sprint(excl) == node.Value {
				add(report.RuleExclude, "value %q is excluded", node.Value)
			}
		}
	}
}

// checkQuantityValidators applies bounds and exclusions to a physical
// quantity value. Bound dimensions were checked at build time, so
// comparison errors cannot occur here.
func (e *Engine) checkQuantityValidators(rpt *report.Report, pd *schema.PropertyDef, q units.Quantity, node *yaml.Node, path string) {
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, b := range pd.Bounds {
		if b.Quantity == nil {
			continue
		}
		if b.Kind == schema.BoundMultipleOf {
			ok, err := units.IsMultipleOf(q, *b.Quantity)
			if err == nil && !ok {
				add(report.Rule(b.Kind), "must be a multiple of %s", b.Quantity)
			}
			continue
		}
		ok, err := units.Compare(q, *b.Quantity, b.Kind.Op())
		if err == nil && !ok {
			add(report.Rule(b.Kind), "must be %s %s", boundPhrase(b.Kind), b.Quantity)
		}
	}

	for _, excl := range pd.Exclude {
		eq, err := e.units.ParseExpected(fmt.Sprint(excl), q.Dimension)
		if err != nil {
			continue
		}
		if same, err := units.Compare(q, eq, units.OpEQ); err == nil && same {
			add(report.RuleExclude, "value %s is excluded", eq)
		}
	}
}

func (e *Engine) checkPathValidators(rpt *report.Report, pd *schema.PropertyDef, node *yaml.Node, path string) {
	if len(pd.FileExt) > 0 {
		ext := strings.TrimPrefix(filepath.Ext(node.Value), ".")
		ok := false
		for _, want := range pd.FileExt {
			if strings.EqualFold(ext, strings.TrimPrefix(want, ".")) {
				ok = true
				break
			}
		}
		if !ok {
			rpt.Add(report.Violation{
				Path: path, Line: node.Line, Col: node.Column,
				Rule: report.RuleFileExt, Severity: report.SeverityError,
				Message: fmt.Sprintf("extension %q is not one of: %s", ext, strings.Join(pd.FileExt, ", ")),
			})
		}
	}

	if e.fs == nil {
		return
	}
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}
	if pd.PathExists && !e.fs.Exists(node.Value) {
		add(report.RulePathExists, "path %q does not exist", node.Value)
	}
	if pd.IsFile && !e.fs.IsFile(node.Value) {
		add(report.RuleIsFile, "%q is not a file", node.Value)
	}
	if pd.IsDir && !e.fs.IsDir(node.Value) {
		add(report.RuleIsDir, "%q is not a directory", node.Value)
	}
}

func (e *Engine) checkURLValidators(ctx context.Context, rpt *report.Report, pd *schema.PropertyDef, node *yaml.Node, path string) {
	if len(pd.URLProtocols) == 0 && !pd.URLReachable {
		return
	}
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	u, err := url.Parse(node.Value)
	if err != nil || u.Scheme == "" {
		add(report.RuleURLProtocols, "%q is not a valid URL", node.Value)
		return
	}

	if len(pd.URLProtocols) > 0 {
		ok := false
		for _, p := range pd.URLProtocols {
			if strings.EqualFold(u.Scheme, p) {
				ok = true
				break
			}
		}
		if !ok {
			add(report.RuleURLProtocols, "protocol %q is not one of: %s", u.Scheme, strings.Join(pd.URLProtocols, ", "))
		}
	}

	if !pd.URLReachable || e.skipReach || e.reach == nil {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, e.reachTimeout)
	defer cancel()
	if err := e.reach.Check(checkCtx, node.Value); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			add(report.RuleReachabilityTimeout, "reachability check timed out after %s", e.reachTimeout)
			return
		}
		add(report.RuleURLUnreachable, "url is not reachable: %v", err)
	}
}

func compareFloats(a, b float64, kind schema.BoundKind) bool {
	switch kind {
	case schema.BoundGT:
		return a > b
	case schema.BoundGE:
		return a >= b
	case schema.BoundLT:
		return a < b
	case schema.BoundLE:
		return a <= b
	default:
		return true
	}
}

// compareInts interprets a three-way comparison result against a bound
// kind.
func compareInts(cmp int, kind schema.BoundKind) bool {
	switch kind {
	case schema.BoundGT:
		return cmp > 0
	case schema.BoundGE:
		return cmp >= 0
	case schema.BoundLT:
		return cmp < 0
	case schema.BoundLE:
		return cmp <= 0
	default:
		return true
	}
}

func boundPhrase(kind schema.BoundKind) string {
	switch kind {
	case schema.BoundGT:
		return "greater than"
	case schema.BoundGE:
		return "at least"
	case schema.BoundLT:
		return "less than"
	case schema.BoundLE:
		return "at most"
	default:
		return string(kind)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}
