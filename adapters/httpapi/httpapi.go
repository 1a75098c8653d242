// Package httpapi exposes validation over HTTP.
// Stateless design - every request carries its own schema and data.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/artpar/yasl/adapters/metrics"
	"github.com/artpar/yasl/core/report"
	"github.com/artpar/yasl/core/resolve"
	"github.com/artpar/yasl/core/schema"
	"github.com/artpar/yasl/core/units"
	"github.com/artpar/yasl/core/validate"
	"github.com/artpar/yasl/ports"
)

// Handler provides the validation API endpoints.
type Handler struct {
	units    *units.Registry
	options  validate.Options
	metrics  *metrics.Collector
	registry *prometheus.Registry
	clock    ports.Clock
	logger   zerolog.Logger
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Units    *units.Registry
	Options  validate.Options
	Metrics  *metrics.Collector
	Registry *prometheus.Registry // nil serves the default gatherer
	Clock    ports.Clock
	Logger   zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Metrics != nil && deps.Options.Reachability != nil {
		deps.Options.Reachability = deps.Metrics.WrapReachability(deps.Options.Reachability)
	}
	return &Handler{
		units:    deps.Units,
		options:  deps.Options,
		metrics:  deps.Metrics,
		registry: deps.Registry,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// Routes returns the HTTP routes for the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", h.Health)
	if h.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Post("/v1/validate", h.Validate)
	r.Post("/v1/schema", h.CheckSchema)

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := h.clock.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", h.clock.Now().Sub(start)).
			Msg("request")
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ValidateRequest carries a schema document and a data document, both
// as YAML text.
type ValidateRequest struct {
	Schema string `json:"schema"`
	Data   string `json:"data"`
}

// ProblemJSON is a structural schema error.
type ProblemJSON struct {
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// ViolationJSON is one data violation.
type ViolationJSON struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Related  *struct {
		Line int `json:"line"`
		Col  int `json:"col"`
	} `json:"related,omitempty"`
}

// ValidateResponse is the outcome of a validation run.
type ValidateResponse struct {
	Valid      bool            `json:"valid"`
	Errors     int             `json:"errors"`
	Warnings   int             `json:"warnings"`
	Violations []ViolationJSON `json:"violations"`
}

// SchemaResponse is the outcome of a schema-only check.
type SchemaResponse struct {
	Valid    bool          `json:"valid"`
	Problems []ProblemJSON `json:"problems,omitempty"`
}

// Validate builds the schema, validates the data document against it,
// and returns the full violation report in document order.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Schema == "" {
		writeError(w, http.StatusBadRequest, "schema is required")
		return
	}

	graph, resp, ok := h.buildGraph([]byte(req.Schema))
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(req.Data), &root); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "data document: "+err.Error())
		return
	}

	start := h.clock.Now()
	if h.metrics != nil {
		h.metrics.RunsInFlight.Inc()
		defer h.metrics.RunsInFlight.Dec()
	}

	engine := validate.New(graph, h.options)
	rpt, err := engine.ValidateDocument(r.Context(), &root)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "data document: "+err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.RecordsTotal.Add(float64(countRecords(&root)))
		h.metrics.RunDuration.Observe(h.clock.Now().Sub(start).Seconds())
		h.metrics.ObserveReport(rpt.Failed(), ruleCounts(&rpt))
	}

	writeJSON(w, http.StatusOK, toResponse(&rpt))
}

// CheckSchema builds and resolves the schema without validating data.
func (h *Handler) CheckSchema(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	_, resp, ok := h.buildGraph([]byte(req.Schema))
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, SchemaResponse{Valid: true})
}

func (h *Handler) buildGraph(src []byte) (*resolve.Graph, SchemaResponse, bool) {
	model, err := schema.NewBuilder(h.units).Build(src)
	if err != nil {
		if h.metrics != nil {
			h.metrics.SchemaBuildErrors.Inc()
		}
		return nil, SchemaResponse{Problems: toProblems(err)}, false
	}
	graph, err := resolve.Resolve(model)
	if err != nil {
		if h.metrics != nil {
			h.metrics.SchemaBuildErrors.Inc()
		}
		return nil, SchemaResponse{Problems: toProblems(err)}, false
	}
	if h.metrics != nil {
		h.metrics.SchemaBuilds.Inc()
	}
	return graph, SchemaResponse{}, true
}

func toProblems(err error) []ProblemJSON {
	var probs []schema.Problem
	switch e := err.(type) {
	case *schema.BuildError:
		probs = e.Problems
	case *resolve.ResolveError:
		probs = e.Problems
	default:
		return []ProblemJSON{{Message: err.Error()}}
	}
	out := make([]ProblemJSON, 0, len(probs))
	for _, p := range probs {
		out = append(out, ProblemJSON{Path: p.Path, Line: p.Line, Col: p.Col, Message: p.Message})
	}
	return out
}

func toResponse(rpt *report.Report) ValidateResponse {
	resp := ValidateResponse{
		Valid:      !rpt.Failed(),
		Warnings:   rpt.Warnings(),
		Violations: make([]ViolationJSON, 0, rpt.Len()),
	}
	for _, v := range rpt.Violations {
		vj := ViolationJSON{
			Path:     v.Path,
			Line:     v.Line,
			Col:      v.Col,
			Rule:     string(v.Rule),
			Severity: string(v.Severity),
			Message:  v.Message,
		}
		if v.Related != nil {
			vj.Related = &struct {
				Line int `json:"line"`
				Col  int `json:"col"`
			}{Line: v.Related.Line, Col: v.Related.Col}
		}
		if v.Severity == report.SeverityError {
			resp.Errors++
		}
		resp.Violations = append(resp.Violations, vj)
	}
	return resp
}

// countRecords counts the top-level records in a data document: one per
// mapping value, or the sequence length when a type holds a list.
func countRecords(root *yaml.Node) int {
	doc := root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return 0
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return 0
	}
	n := 0
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if v := doc.Content[i+1]; v.Kind == yaml.SequenceNode {
			n += len(v.Content)
		} else {
			n++
		}
	}
	return n
}

func ruleCounts(rpt *report.Report) map[string]int {
	counts := make(map[string]int)
	for _, v := range rpt.Violations {
		counts[string(v.Rule)]++
	}
	return counts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
