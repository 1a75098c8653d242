// Package report defines the validation report: an ordered collection
// of violations with document locations and rule kinds. The report is
// the engine's only output; rendering it is deterministic so repeated
// runs over identical input produce byte-identical text.
package report

import (
	"fmt"
	"sort"
	"strings"
)

// Rule identifies the validator or check that produced a violation.
// The values mirror the schema key vocabulary.
type Rule string

const (
	RuleRequired  Rule = "required"
	RulePreferred Rule = "preferred"
	RuleType      Rule = "type"
	RuleEnum      Rule = "enum"

	RuleGT         Rule = "gt"
	RuleGE         Rule = "ge"
	RuleLT         Rule = "lt"
	RuleLE         Rule = "le"
	RuleMultipleOf Rule = "multiple_of"
	RuleExclude    Rule = "exclude"

	RuleStrMin   Rule = "str_min"
	RuleStrMax   Rule = "str_max"
	RuleStrRegex Rule = "str_regex"

	RulePathExists Rule = "path_exists"
	RuleIsFile     Rule = "is_file"
	RuleIsDir      Rule = "is_dir"
	RuleFileExt    Rule = "file_ext"

	RuleURLProtocols Rule = "url_protocols"
	RuleURLUnreachable Rule = "url_unreachable"
	// RuleReachabilityTimeout marks an infrastructure failure of the
	// reachability check itself, not a statement about the data.
	RuleReachabilityTimeout Rule = "reachability_timeout"

	RuleOnlyOne    Rule = "only_one"
	RuleAtLeastOne Rule = "at_least_one"
	RuleIfThen     Rule = "if_then"
	RuleExpr       Rule = "expr"
	RuleExprError  Rule = "expr_error"

	RuleUnique            Rule = "unique"
	RuleDanglingReference Rule = "dangling_reference"

	RuleUnknownType     Rule = "unknown_type"
	RuleUnknownProperty Rule = "unknown_property"
)

// Severity ranks a violation. Warnings (preferred-presence misses)
// never fail a run on their own.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Location is a document position.
type Location struct {
	Path string
	Line int
	Col  int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d: %s", l.Line, l.Col, l.Path)
}

// Violation is one reported failure of a data document against a
// resolved schema. Related points at the other location involved in
// cross-record rules (the first occurrence for duplicates).
type Violation struct {
	Path     string
	Line     int
	Col      int
	Rule     Rule
	Severity Severity
	Message  string
	Related  *Location
}

// Report is the ordered collection of violations from one validation
// run.
type Report struct {
	Violations []Violation
}

// Add appends a violation.
func (r *Report) Add(v Violation) {
	r.Violations = append(r.Violations, v)
}

// Merge appends all violations of another report.
func (r *Report) Merge(other Report) {
	r.Violations = append(r.Violations, other.Violations...)
}

// Sort orders violations by document position. Ordering is a
// presentation contract: violations are reported in document traversal
// order regardless of which pass discovered them.
func (r *Report) Sort() {
	sort.SliceStable(r.Violations, func(i, j int) bool {
		a, b := r.Violations[i], r.Violations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}

// Failed reports whether any error-severity violation is present.
func (r *Report) Failed() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of violations.
func (r *Report) Len() int {
	return len(r.Violations)
}

// Warnings returns the number of warning-severity violations.
func (r *Report) Warnings() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Render formats the report for terminal output, one violation per
// line.
func (r *Report) Render() string {
	if len(r.Violations) == 0 {
		return "OK: no violations\n"
	}

	var b strings.Builder
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "%d:%d %s [%s] %s: %s\n", v.Line, v.Col, v.Severity, v.Rule, v.Path, v.Message)
		if v.Related != nil {
			fmt.Fprintf(&b, "    first seen at %s\n", v.Related)
		}
	}
	errs := len(r.Violations) - r.Warnings()
	fmt.Fprintf(&b, "%d violation(s): %d error(s), %d warning(s)\n", len(r.Violations), errs, r.Warnings())
	return b.String()
}
