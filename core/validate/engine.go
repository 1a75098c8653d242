// Package validate implements the validation engine: it walks a YAML
// data document against a resolved schema graph and accumulates
// violations into a report.
//
// The engine runs in phases. A prescan indexes every unique-marked
// value across the whole document (so forward references resolve), then
// each top-level record gets its structural and local validators
// applied (pass 1, parallel across records) together with its
// type-level validators (pass 1b). Finally the dataset-wide checks run:
// duplicate unique values and deferred ref lookups (pass 2). Violations
// are sorted into document order before the report is returned.
package validate

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/resolve"
	"github.com/artpar/yasl/core/schema"
	"github.com/artpar/yasl/core/units"
	"github.com/artpar/yasl/ports"
)

// Options configures an Engine.
type Options struct {
	// Units is the registry used for quantity values. Defaults to the
	// standard registry under the decimal data convention.
	Units *units.Registry

	// FS backs the path validators. When nil, path checks are skipped.
	FS ports.FS

	// Reachability backs url_reachable. When nil, reachability checks
	// are skipped.
	Reachability ports.Reachability

	// ReachabilityTimeout bounds one url_reachable probe. A probe that
	// exceeds it is reported as a reachability_timeout violation, never
	// as a crash or a stall. Defaults to 5s.
	ReachabilityTimeout time.Duration

	// SkipReachability disables url_reachable checks for this engine.
	SkipReachability bool

	// Workers bounds pass-1 parallelism across top-level records.
	// Defaults to GOMAXPROCS.
	Workers int

	Logger zerolog.Logger
}

// Engine validates data documents against one resolved schema graph.
// It keeps no state between runs; indices live for a single call.
type Engine struct {
	graph        *resolve.Graph
	units        *units.Registry
	fs           ports.FS
	reach        ports.Reachability
	reachTimeout time.Duration
	skipReach    bool
	workers      int
	logger       zerolog.Logger
}

// New creates a validation engine for the given resolved graph.
func New(graph *resolve.Graph, opts Options) *Engine {
	if opts.Units == nil {
		opts.Units = units.NewRegistry(units.Decimal)
	}
	if opts.ReachabilityTimeout <= 0 {
		opts.ReachabilityTimeout = 5 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		graph:        graph,
		units:        opts.Units,
		fs:           opts.FS,
		reach:        opts.Reachability,
		reachTimeout: opts.ReachabilityTimeout,
		skipReach:    opts.SkipReachability,
		workers:      opts.Workers,
		logger:       opts.Logger,
	}
}

// task is one top-level record to validate.
type task struct {
	td   *schema.TypeDef
	node *yaml.Node
	path string
}

// ValidateData parses and validates a whole data document.
func (e *Engine) ValidateData(ctx context.Context, data []byte) (report.Report, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return report.Report{}, fmt.Errorf("parse data yaml: %w", err)
	}
	return e.ValidateDocument(ctx, &root)
}

// ValidateDocument validates a parsed data document. The root must be a
// mapping of type names (qualified, or bare when unambiguous) to a
// record or a sequence of records.
func (e *Engine) ValidateDocument(ctx context.Context, root *yaml.Node) (report.Report, error) {
	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return report.Report{}, nil
		}
		doc = doc.Content[0]
	}

	rpt := report.Report{}
	if doc.Kind != yaml.MappingNode {
		rpt.Add(report.Violation{
			Path: "$", Line: doc.Line, Col: doc.Column,
			Rule: report.RuleType, Severity: report.SeverityError,
			Message: "data root must be a mapping of type names to records",
		})
		return rpt, nil
	}

	var tasks []task
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]

		td, err := e.graph.Type(key.Value)
		if err != nil {
			rpt.Add(report.Violation{
				Path: key.Value, Line: key.Line, Col: key.Column,
				Rule: report.RuleUnknownType, Severity: report.SeverityError,
				Message: err.Error(),
			})
			continue
		}

		switch value.Kind {
		case yaml.SequenceNode:
			for j, item := range value.Content {
				tasks = append(tasks, task{td: td, node: item, path: fmt.Sprintf("%s[%d]", key.Value, j)})
			}
		case yaml.MappingNode:
			tasks = append(tasks, task{td: td, node: value, path: key.Value})
		default:
			rpt.Add(report.Violation{
				Path: key.Value, Line: value.Line, Col: value.Column,
				Rule: report.RuleType, Severity: report.SeverityError,
				Message: "expected a record or a sequence of records",
			})
		}
	}

	run := e.validateTasks(ctx, &rpt, tasks)
	if err := ctx.Err(); err != nil {
		return report.Report{}, err
	}

	// Pass 2: dataset-wide checks over the indices.
	rpt.Violations = append(rpt.Violations, run.dupes...)
	run.checkRefs(&rpt)

	rpt.Sort()
	return rpt, nil
}

// Validate validates a single record subtree as the given type.
func (e *Engine) Validate(ctx context.Context, typeName string, node *yaml.Node) (report.Report, error) {
	td, err := e.graph.Type(typeName)
	if err != nil {
		return report.Report{}, err
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	rpt := report.Report{}
	run := e.validateTasks(ctx, &rpt, []task{{td: td, node: node, path: typeName}})
	if err := ctx.Err(); err != nil {
		return report.Report{}, err
	}
	rpt.Violations = append(rpt.Violations, run.dupes...)
	run.checkRefs(&rpt)
	rpt.Sort()
	return rpt, nil
}

// validateTasks runs the prescan sequentially, then pass 1/1b across a
// bounded worker pool. Per-task reports are merged in task order; the
// final Sort restores document order regardless of scheduling.
func (e *Engine) validateTasks(ctx context.Context, rpt *report.Report, tasks []task) *run {
	rn := newRun(e)

	started := time.Now()
	for _, t := range tasks {
		if t.node.Kind != yaml.MappingNode {
			continue // reported during pass 1
		}
		rn.prescanRecord(t.td, t.node, t.path)
	}

	results := make([]report.Report, len(tasks))
	workers := e.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	if workers <= 1 {
		for i, t := range tasks {
			results[i] = e.validateRecord(ctx, rn, t.td, t.node, t.path)
		}
	} else {
		indexes := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					t := tasks[i]
					results[i] = e.validateRecord(ctx, rn, t.td, t.node, t.path)
				}
			}()
		}
		for i := range tasks {
			select {
			case indexes <- i:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		close(indexes)
		wg.Wait()
	}

	for _, r := range results {
		rpt.Merge(r)
	}

	e.logger.Debug().
		Int("records", len(tasks)).
		Int("workers", workers).
		Dur("elapsed", time.Since(started)).
		Msg("pass 1 complete")

	return rn
}

// validateRecord applies pass 1 (presence, shape, local validators) and
// pass 1b (type-level validators) to one record.
func (e *Engine) validateRecord(ctx context.Context, rn *run, td *schema.TypeDef, node *yaml.Node, path string) report.Report {
	rpt := report.Report{}

	if node.Kind != yaml.MappingNode {
		rpt.Add(report.Violation{
			Path: path, Line: node.Line, Col: node.Column,
			Rule: report.RuleType, Severity: report.SeverityError,
			Message: fmt.Sprintf("record of %s must be a mapping", td.QualifiedName()),
		})
		return rpt
	}

	values := recordValues(td, node, path, &rpt)

	for _, pd := range td.Properties {
		ppath := path + "." + pd.Name
		value, present := values[pd.Name]

		if !present && pd.Default != nil {
			// Defaults are substituted in memory before validators run,
			// so a defaulted value is itself subject to validation and
			// visible to the type-level validators.
			value = nodeFromValue(pd.Default, node)
			values[pd.Name] = value
			present = true
		}

		if !present {
			switch pd.Presence {
			case schema.PresenceRequired:
				rpt.Add(report.Violation{
					Path: ppath, Line: node.Line, Col: node.Column,
					Rule: report.RuleRequired, Severity: report.SeverityError,
					Message: "property is required",
				})
			case schema.PresencePreferred:
				rpt.Add(report.Violation{
					Path: ppath, Line: node.Line, Col: node.Column,
					Rule: report.RulePreferred, Severity: report.SeverityWarning,
					Message: "property is preferred",
				})
			}
			continue
		}

		e.checkValue(ctx, rn, &rpt, pd, pd.Type, value, ppath)
	}

	e.checkTypeValidators(td, node, values, path, &rpt)

	return rpt
}

// recordValues collects the record's property nodes, flagging unknown
// keys. Explicit nulls count as absent.
func recordValues(td *schema.TypeDef, node *yaml.Node, path string, rpt *report.Report) map[string]*yaml.Node {
	values := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if _, ok := td.Property(key.Value); !ok {
			rpt.Add(report.Violation{
				Path: path + "." + key.Value, Line: key.Line, Col: key.Column,
				Rule: report.RuleUnknownProperty, Severity: report.SeverityError,
				Message: fmt.Sprintf("property is not declared on %s", td.QualifiedName()),
			})
			continue
		}
		if isNull(value) {
			continue
		}
		values[key.Value] = value
	}
	return values
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// nodeFromValue synthesizes a node for a schema default, positioned at
// the record that received it.
func nodeFromValue(v any, at *yaml.Node) *yaml.Node {
	data, err := yaml.Marshal(v)
	if err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: at.Line, Column: at.Column}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: at.Line, Column: at.Column}
	}
	n := doc.Content[0]
	reposition(n, at.Line, at.Column)
	return n
}

func reposition(n *yaml.Node, line, col int) {
	n.Line, n.Column = line, col
	for _, c := range n.Content {
		reposition(c, line, col)
	}
}
