package validate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/resolve"
	"github.com/artpar/yasl/core/schema"
	"github.com/artpar/yasl/core/units"
)

func buildGraph(t *testing.T, doc string) *resolve.Graph {
	t.Helper()
	model, err := schema.NewBuilder(units.NewRegistry(units.Decimal)).Build([]byte(doc))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	graph, err := resolve.Resolve(model)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return graph
}

func newEngine(t *testing.T, schemaDoc string, opts Options) *Engine {
	t.Helper()
	opts.Logger = zerolog.Nop()
	return New(buildGraph(t, schemaDoc), opts)
}

func validate(t *testing.T, e *Engine, dataDoc string) report.Report {
	t.Helper()
	rpt, err := e.ValidateData(context.Background(), []byte(dataDoc))
	if err != nil {
		t.Fatalf("ValidateData: %v", err)
	}
	return rpt
}

func rules(rpt report.Report) []report.Rule {
	var out []report.Rule
	for _, v := range rpt.Violations {
		out = append(out, v.Rule)
	}
	return out
}

func countRule(rpt report.Report, rule report.Rule) int {
	n := 0
	for _, v := range rpt.Violations {
		if v.Rule == rule {
			n++
		}
	}
	return n
}

const projectSchema = `
definitions:
  core:
    types:
      Project:
        properties:
          id:       { type: str, unique: true, presence: required }
          name:     { type: str, str_min: 3, presence: preferred }
          status:   Status
          budget:   { type: float, ge: 0 }
          distance: { type: length, lt: "40000 km" }
          owner:    ref[hr.Person]
          tags:     list[str]
    enums:
      Status: [draft, active, done]
  hr:
    types:
      Person:
        properties:
          email: { type: str, unique: true, presence: required }
          name:  str
`

func TestEmptyButWellTypedDataYieldsOnlyPresenceViolations(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	rpt := validate(t, e, `
core.Project:
  - {}
hr.Person:
  - {}
`)

	for _, v := range rpt.Violations {
		if v.Rule != report.RuleRequired && v.Rule != report.RulePreferred {
			t.Errorf("unexpected rule %s: %s", v.Rule, v.Message)
		}
	}
	if countRule(rpt, report.RuleRequired) != 2 {
		t.Errorf("required violations = %d, want 2 (ids and email): %v", countRule(rpt, report.RuleRequired), rules(rpt))
	}
}

func TestValidDocument(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	rpt := validate(t, e, `
core.Project:
  - id: p1
    name: Alpha
    status: active
    budget: 1000.5
    distance: 12 km
    owner: ada@example.org
    tags: [infra, go]
hr.Person:
  - email: ada@example.org
    name: Ada
`)

	if rpt.Len() != 0 {
		t.Errorf("expected clean report, got: %s", rpt.Render())
	}
}

func TestShapeViolations(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	rpt := validate(t, e, `
core.Project:
  - id: p1
    status: cancelled
    budget: lots
    distance: 10 kg
    tags: solo
`)

	want := map[report.Rule]int{
		report.RuleEnum: 1, // cancelled
		report.RuleType: 3, // budget, distance (dimension), tags
	}
	for rule, n := range want {
		if got := countRule(rpt, rule); got != n {
			t.Errorf("%s violations = %d, want %d: %s", rule, got, n, rpt.Render())
		}
	}
}

func TestQuantityBoundsAreUnitAware(t *testing.T) {
	e := newEngine(t, `
definitions:
  lab:
    types:
      Sample:
        properties:
          pressure: { type: pressure, ge: "90 kPa", le: "1.2 bar" }
`, Options{})

	if rpt := validate(t, e, "lab.Sample: {pressure: 1 atm}"); rpt.Len() != 0 {
		t.Errorf("1 atm should satisfy the bounds: %s", rpt.Render())
	}
	rpt := validate(t, e, "lab.Sample: {pressure: 80000 Pa}")
	if countRule(rpt, report.RuleGE) != 1 {
		t.Errorf("80 kPa should violate ge 90 kPa: %s", rpt.Render())
	}
}

func TestClockTimeComparesChronologically(t *testing.T) {
	e := newEngine(t, `
definitions:
  ops:
    types:
      Shift:
        properties:
          start: { type: time, ge: "08:00", lt: "20:00" }
`, Options{})

	if rpt := validate(t, e, `ops.Shift: {start: "09:30"}`); rpt.Len() != 0 {
		t.Errorf("09:30 should pass: %s", rpt.Render())
	}
	rpt := validate(t, e, `ops.Shift: {start: "21:15"}`)
	if countRule(rpt, report.RuleLT) != 1 {
		t.Errorf("21:15 should violate lt 20:00: %s", rpt.Render())
	}
}

func TestDefaultsAreValidated(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      T:
        properties:
          level: { type: int, ge: 1, default: 0 }
`, Options{})

	// The default itself violates ge 1 once substituted.
	rpt := validate(t, e, "a.T: {}")
	if countRule(rpt, report.RuleGE) != 1 {
		t.Errorf("default 0 should violate ge 1: %s", rpt.Render())
	}
}

func TestDefaultSatisfiesPresence(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      T:
        properties:
          mode: { type: str, presence: required, default: auto }
`, Options{})

	if rpt := validate(t, e, "a.T: {}"); rpt.Len() != 0 {
		t.Errorf("defaulted property should satisfy required: %s", rpt.Render())
	}
}

func TestDefaultsAreVisibleToTypeValidators(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Task:
        properties:
          status:     { type: str, default: active }
          start_date: date
        validators:
          - at_least_one: [status]
          - if_then:
              eval: status
              value: [active]
              present: [start_date]
`, Options{})

	// The defaulted status satisfies at_least_one and triggers the
	// conditional clause, which start_date then fails.
	rpt := validate(t, e, "a.Task: {}")
	if got := countRule(rpt, report.RuleAtLeastOne); got != 0 {
		t.Errorf("defaulted property should satisfy at_least_one: %s", rpt.Render())
	}
	if got := countRule(rpt, report.RuleIfThen); got != 1 {
		t.Errorf("if_then violations = %d, want 1 (default triggers the clause): %s", got, rpt.Render())
	}
}

func TestDefaultsAreVisibleToExprValidators(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Job:
        properties:
          retries: { type: int, default: 3 }
        validators:
          - expr: "retries != nil && retries <= 5"
`, Options{})

	if rpt := validate(t, e, "a.Job: {}"); countRule(rpt, report.RuleExpr) != 0 {
		t.Errorf("defaulted retries should be in the expression environment: %s", rpt.Render())
	}
}

func TestPreferredIsWarning(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	rpt := validate(t, e, "core.Project: {id: p1}")

	if rpt.Failed() {
		t.Errorf("preferred-only misses should not fail the run: %s", rpt.Render())
	}
	if rpt.Warnings() != 1 {
		t.Errorf("warnings = %d, want 1", rpt.Warnings())
	}
}

func TestOnlyOneAndAtLeastOne(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Contact:
        properties:
          email: str
          phone: str
        validators:
          - only_one: [email, phone]
          - at_least_one: [email, phone]
`, Options{})

	tests := []struct {
		name       string
		doc        string
		onlyOne    int
		atLeastOne int
	}{
		{"none", "a.Contact: {}", 1, 1},
		{"one", "a.Contact: {email: a@b.c}", 0, 0},
		{"both", "a.Contact: {email: a@b.c, phone: '123'}", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpt := validate(t, e, tt.doc)
			if got := countRule(rpt, report.RuleOnlyOne); got != tt.onlyOne {
				t.Errorf("only_one = %d, want %d", got, tt.onlyOne)
			}
			if got := countRule(rpt, report.RuleAtLeastOne); got != tt.atLeastOne {
				t.Errorf("at_least_one = %d, want %d", got, tt.atLeastOne)
			}
		})
	}
}

func TestIfThen(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Task:
        properties:
          status:     str
          start_date: date
          reason:     str
        validators:
          - if_then:
              eval: status
              value: [active]
              present: [start_date]
              absent: [reason]
`, Options{})

	tests := []struct {
		name   string
		doc    string
		ifThen int
	}{
		{"active without start_date", "a.Task: {status: active}", 1},
		{"active with start_date and reason", "a.Task: {status: active, start_date: 2025-01-01, reason: because}", 1},
		{"active satisfied", "a.Task: {status: active, start_date: 2025-01-01}", 0},
		{"inactive skips clause", "a.Task: {status: inactive}", 0},
		{"eval absent skips clause", "a.Task: {}", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpt := validate(t, e, tt.doc)
			if got := countRule(rpt, report.RuleIfThen); got != tt.ifThen {
				t.Errorf("if_then violations = %d, want %d: %s", got, tt.ifThen, rpt.Render())
			}
		})
	}
}

func TestExprValidator(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Range:
        properties:
          low:  int
          high: int
        validators:
          - expr: "low == nil || high == nil || low <= high"
`, Options{})

	if rpt := validate(t, e, "a.Range: {low: 1, high: 5}"); countRule(rpt, report.RuleExpr) != 0 {
		t.Errorf("1 <= 5 should satisfy: %s", rpt.Render())
	}
	rpt := validate(t, e, "a.Range: {low: 9, high: 5}")
	if countRule(rpt, report.RuleExpr) != 1 {
		t.Errorf("9 <= 5 should violate: %s", rpt.Render())
	}
}

func TestNestedTypesListsAndMaps(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Address:
        properties:
          city: { type: str, presence: required }
      Person:
        properties:
          name:    str
          home:    Address
          offices: list[Address]
          scores:  map[str,int]
`, Options{})

	rpt := validate(t, e, `
a.Person:
  name: Ada
  home: {city: London}
  offices:
    - {city: Zurich}
    - {}
  scores: {math: 10, physics: high}
`)

	if got := countRule(rpt, report.RuleRequired); got != 1 {
		t.Errorf("nested required misses = %d, want 1 (offices[1].city): %s", got, rpt.Render())
	}
	if got := countRule(rpt, report.RuleType); got != 1 {
		t.Errorf("map value type misses = %d, want 1 (scores.physics): %s", got, rpt.Render())
	}

	var paths []string
	for _, v := range rpt.Violations {
		paths = append(paths, v.Path)
	}
	joined := strings.Join(paths, " ")
	if !strings.Contains(joined, "offices[1]") || !strings.Contains(joined, "scores.physics") {
		t.Errorf("violation paths = %v", paths)
	}
}

func TestUnknownTypeAndProperty(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	rpt := validate(t, e, `
core.Sprint:
  - {}
core.Project:
  - id: p1
    nickname: alpha
`)

	if countRule(rpt, report.RuleUnknownType) != 1 {
		t.Errorf("unknown type violations: %s", rpt.Render())
	}
	if countRule(rpt, report.RuleUnknownProperty) != 1 {
		t.Errorf("unknown property violations: %s", rpt.Render())
	}
}

func TestIdempotentReports(t *testing.T) {
	e := newEngine(t, projectSchema, Options{Workers: 4})
	doc := `
core.Project:
  - id: p1
    status: bogus
  - id: p1
    budget: -5
hr.Person:
  - {name: no email}
`
	first := validate(t, e, doc)
	for i := 0; i < 5; i++ {
		again := validate(t, e, doc)
		if first.Render() != again.Render() {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, first.Render(), again.Render())
		}
	}
}

func TestViolationsAreInDocumentOrder(t *testing.T) {
	e := newEngine(t, projectSchema, Options{Workers: 8})
	rpt := validate(t, e, `
core.Project:
  - id: p1
    status: bogus
  - id: p2
    budget: -1
  - id: p3
    distance: 10 kg
`)

	for i := 1; i < rpt.Len(); i++ {
		if rpt.Violations[i].Line < rpt.Violations[i-1].Line {
			t.Fatalf("violations out of document order: %s", rpt.Render())
		}
	}
}

func TestContextCancellation(t *testing.T) {
	e := newEngine(t, projectSchema, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ValidateData(ctx, []byte("core.Project: [{id: p1}]"))
	if err == nil {
		t.Error("cancelled context should surface an error")
	}
}

func TestReachabilityTimeoutIsBoundedAndReported(t *testing.T) {
	e := newEngine(t, `
definitions:
  a:
    types:
      Site:
        properties:
          url: { type: str, url_protocols: [https], url_reachable: true }
`, Options{
		Reachability:        reachFunc(waitForever),
		ReachabilityTimeout: 10 * time.Millisecond,
	})

	start := time.Now()
	rpt := validate(t, e, "a.Site: {url: https://example.org}")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("hung check stalled the run for %s", elapsed)
	}
	if countRule(rpt, report.RuleReachabilityTimeout) != 1 {
		t.Errorf("expected a reachability_timeout violation: %s", rpt.Render())
	}
}

// reachFunc adapts a function to ports.Reachability.
type reachFunc func(ctx context.Context, url string) error

func (f reachFunc) Check(ctx context.Context, url string) error {
	return f(ctx, url)
}

func waitForever(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}
