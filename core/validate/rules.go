package validate

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/schema"
)

// checkTypeValidators runs pass 1b: the type-level validators of one
// record, over the set of present (or defaulted) properties.
func (e *Engine) checkTypeValidators(td *schema.TypeDef, node *yaml.Node, values map[string]*yaml.Node, path string, rpt *report.Report) {
	add := func(rule report.Rule, format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: rule, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	var env map[string]any // built lazily, only when an expr validator runs

	for _, tv := range td.Validators {
		switch tv.Kind {
		case schema.ValidatorOnlyOne:
			n := countPresent(tv.Props, values)
			if n != 1 {
				add(report.RuleOnlyOne, "exactly one of [%s] must be present, found %d", strings.Join(tv.Props, ", "), n)
			}

		case schema.ValidatorAtLeastOne:
			if countPresent(tv.Props, values) == 0 {
				add(report.RuleAtLeastOne, "at least one of [%s] must be present", strings.Join(tv.Props, ", "))
			}

		case schema.ValidatorIfThen:
			e.checkIfThen(tv.IfThen, values, path, node, rpt)

		case schema.ValidatorExpr:
			if env == nil {
				env = recordEnv(td, values)
			}
			e.checkExpr(tv.Expr, env, path, node, rpt)
		}
	}
}

// checkIfThen evaluates one conditional clause. The clause is skipped,
// not violated, when the eval property is absent.
func (e *Engine) checkIfThen(clause *schema.IfThenClause, values map[string]*yaml.Node, path string, node *yaml.Node, rpt *report.Report) {
	evalNode, ok := values[clause.Eval]
	if !ok {
		return
	}
	if evalNode.Kind != yaml.ScalarNode {
		return
	}

	matched := false
	for _, v := range clause.Value {
		if evalNode.Value == v {
			matched = true
			break
		}
	}
	if !matched {
		return
	}

	add := func(format string, args ...any) {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: report.RuleIfThen, Severity: report.SeverityError,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for _, p := range clause.Present {
		if _, present := values[p]; !present {
			add("when %s is %q, %s must be present", clause.Eval, evalNode.Value, p)
		}
	}
	for _, p := range clause.Absent {
		if _, present := values[p]; present {
			add("when %s is %q, %s must be absent", clause.Eval, evalNode.Value, p)
		}
	}
}

// checkExpr runs a compiled boolean expression against the record
// environment. A false result is a violation; an evaluation failure is
// reported under its own rule kind, never raised.
func (e *Engine) checkExpr(prog *schema.ExprProgram, env map[string]any, path string, node *yaml.Node, rpt *report.Report) {
	out, err := vm.Run(prog.Program, env)
	if err != nil {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: report.RuleExprError, Severity: report.SeverityError,
			Message: fmt.Sprintf("expression %q failed: %v", prog.Source, err),
		})
		return
	}
	if ok, _ := out.(bool); !ok {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: report.RuleExpr, Severity: report.SeverityError,
			Message: fmt.Sprintf("expression %q is not satisfied", prog.Source),
		})
	}
}

func countPresent(props []string, values map[string]*yaml.Node) int {
	n := 0
	for _, p := range props {
		if _, ok := values[p]; ok {
			n++
		}
	}
	return n
}

// recordEnv decodes the record's present property values into plain Go
// values for expression evaluation.
func recordEnv(td *schema.TypeDef, values map[string]*yaml.Node) map[string]any {
	env := make(map[string]any, len(values))
	for _, pd := range td.Properties {
		node, ok := values[pd.Name]
		if !ok {
			continue
		}
		var v any
		if err := node.Decode(&v); err != nil {
			continue
		}
		env[pd.Name] = v
	}
	return env
}
