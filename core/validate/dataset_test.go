package validate

import (
	"testing"

	"github.com/artpar/yasl/core/report"
)

const refSchema = `
definitions:
  pm:
    types:
      Person:
        properties:
          email: { type: str, unique: true, presence: required }
          name:  str
      Task:
        properties:
          id:       { type: str, unique: true, presence: required }
          assignee: ref[Person]
          blocks:   list[ref[Task]]
`

func TestUniqueDuplicatePairYieldsOneViolation(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	rpt := validate(t, e, `
pm.Person:
  - email: ada@example.org
  - email: ada@example.org
`)
	if got := countRule(rpt, report.RuleUnique); got != 1 {
		t.Fatalf("unique violations = %d, want 1: %s", got, rpt.Render())
	}

	v := rpt.Violations[0]
	if v.Related == nil {
		t.Fatal("duplicate violation should reference the first occurrence")
	}
	if v.Related.Line >= v.Line {
		t.Errorf("related location %d should precede the duplicate %d", v.Related.Line, v.Line)
	}

	// Either record alone is clean.
	single := validate(t, e, "pm.Person: [{email: ada@example.org}]")
	if single.Len() != 0 {
		t.Errorf("single record should be clean: %s", single.Render())
	}
}

func TestUniquenessIsScopedPerTypeAndProperty(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	// The same value on different types does not collide.
	rpt := validate(t, e, `
pm.Person:
  - email: x
pm.Task:
  - id: x
`)
	if countRule(rpt, report.RuleUnique) != 0 {
		t.Errorf("cross-type values should not collide: %s", rpt.Render())
	}
}

func TestForwardReferenceResolves(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	// The referenced person appears after the reference in document
	// order.
	rpt := validate(t, e, `
pm.Task:
  - id: t1
    assignee: grace@example.org
pm.Person:
  - email: grace@example.org
`)
	if rpt.Len() != 0 {
		t.Errorf("forward reference should resolve: %s", rpt.Render())
	}
}

func TestDanglingReference(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	rpt := validate(t, e, `
pm.Task:
  - id: t1
    assignee: nobody@example.org
`)
	if got := countRule(rpt, report.RuleDanglingReference); got != 1 {
		t.Fatalf("dangling references = %d, want 1: %s", got, rpt.Render())
	}
	v := rpt.Violations[0]
	if v.Path != "pm.Task[0].assignee" {
		t.Errorf("violation path = %q", v.Path)
	}
}

func TestReferencesInsideLists(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	rpt := validate(t, e, `
pm.Task:
  - id: t1
    blocks: [t2, t9]
  - id: t2
`)
	if got := countRule(rpt, report.RuleDanglingReference); got != 1 {
		t.Fatalf("dangling references = %d, want 1 (t9): %s", got, rpt.Render())
	}
	if rpt.Violations[0].Path != "pm.Task[0].blocks[1]" {
		t.Errorf("violation path = %q", rpt.Violations[0].Path)
	}
}

func TestSelfReferenceResolves(t *testing.T) {
	e := newEngine(t, refSchema, Options{})

	rpt := validate(t, e, `
pm.Task:
  - id: t1
    blocks: [t1]
`)
	if rpt.Len() != 0 {
		t.Errorf("self reference should resolve: %s", rpt.Render())
	}
}

func TestDefaultedUniqueValuesCollide(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      T:
        properties:
          slot: { type: str, unique: true, default: main }
`, Options{})

	rpt := validate(t, e, `
a.T:
  - {}
  - {}
`)
	if got := countRule(rpt, report.RuleUnique); got != 1 {
		t.Errorf("defaulted duplicates = %d, want 1: %s", got, rpt.Render())
	}
}
