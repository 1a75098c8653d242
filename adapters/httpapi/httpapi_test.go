package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/artpar/yasl/adapters/clock"
	"github.com/artpar/yasl/adapters/httpapi"
	"github.com/artpar/yasl/adapters/metrics"
	"github.com/artpar/yasl/core/units"
	"github.com/artpar/yasl/core/validate"
)

const testSchema = `
definitions:
  core:
    types:
      Server:
        properties:
          name: { type: str, presence: required, unique: true }
          memory: { type: data, ge: 1 GiB }
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := units.NewRegistry(units.Decimal)
	promReg := prometheus.NewRegistry()
	h := httpapi.NewHandler(httpapi.Deps{
		Units:    reg,
		Options:  validate.Options{Units: reg, Logger: zerolog.Nop()},
		Metrics:  metrics.NewWithRegistry(promReg),
		Registry: promReg,
		Clock:    clock.Real{},
		Logger:   zerolog.Nop(),
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestValidate_CleanDocument(t *testing.T) {
	srv := newServer(t)
	resp, body := post(t, srv, "/v1/validate", httpapi.ValidateRequest{
		Schema: testSchema,
		Data:   "core.Server: {name: web-1, memory: 4 GiB}",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var out httpapi.ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Valid || len(out.Violations) != 0 {
		t.Errorf("expected clean result, got %s", body)
	}
}

func TestValidate_Violations(t *testing.T) {
	srv := newServer(t)
	resp, body := post(t, srv, "/v1/validate", httpapi.ValidateRequest{
		Schema: testSchema,
		Data: `
core.Server:
  - {name: web-1, memory: 512 MiB}
  - {memory: 4 GiB}
`,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var out httpapi.ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Valid {
		t.Error("expected valid=false")
	}
	if len(out.Violations) != 2 {
		t.Fatalf("violations = %d, want 2 (ge + required): %s", len(out.Violations), body)
	}
	// Document order: the bound violation on record 1 precedes the
	// missing name on record 2.
	if out.Violations[0].Rule != "ge" || out.Violations[1].Rule != "required" {
		t.Errorf("rules = %s, %s; want ge, required", out.Violations[0].Rule, out.Violations[1].Rule)
	}
}

func TestValidate_SchemaErrors(t *testing.T) {
	srv := newServer(t)
	resp, body := post(t, srv, "/v1/validate", httpapi.ValidateRequest{
		Schema: `
definitions:
  core:
    types:
      Server:
        properties:
          memory: { type: data, ge: 1 kg }
`,
		Data: "core.Server: {}",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", resp.StatusCode, body)
	}

	var out httpapi.SchemaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Valid || len(out.Problems) == 0 {
		t.Errorf("expected schema problems, got %s", body)
	}
}

func TestValidate_BadJSON(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/v1/validate", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCheckSchema(t *testing.T) {
	srv := newServer(t)

	resp, body := post(t, srv, "/v1/schema", httpapi.ValidateRequest{Schema: testSchema})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	resp, body = post(t, srv, "/v1/schema", httpapi.ValidateRequest{Schema: "definitions: {a: {types: {T: {properties: {x: nope}}}}}"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", resp.StatusCode, body)
	}
}

func TestValidate_CountsRecords(t *testing.T) {
	reg := units.NewRegistry(units.Decimal)
	promReg := prometheus.NewRegistry()
	c := metrics.NewWithRegistry(promReg)
	h := httpapi.NewHandler(httpapi.Deps{
		Units:    reg,
		Options:  validate.Options{Units: reg, Logger: zerolog.Nop()},
		Metrics:  c,
		Registry: promReg,
		Clock:    clock.Real{},
		Logger:   zerolog.Nop(),
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	post(t, srv, "/v1/validate", httpapi.ValidateRequest{
		Schema: testSchema,
		Data: `
core.Server:
  - {name: web-1, memory: 2 GiB}
  - {name: web-2, memory: 2 GiB}
`,
	})

	if got := testutil.ToFloat64(c.RecordsTotal); got != 2 {
		t.Errorf("records_total = %v, want 2", got)
	}
}

func TestRequestLogging(t *testing.T) {
	reg := units.NewRegistry(units.Decimal)
	var buf bytes.Buffer
	h := httpapi.NewHandler(httpapi.Deps{
		Units:   reg,
		Options: validate.Options{Units: reg, Logger: zerolog.Nop()},
		Clock:   clock.NewFixed(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), 250*time.Millisecond),
		Logger:  zerolog.New(&buf),
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	line := buf.String()
	for _, want := range []string{`"path":"/healthz"`, `"status":200`, `"elapsed":250`} {
		if !strings.Contains(line, want) {
			t.Errorf("request log missing %s: %s", want, line)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t)

	post(t, srv, "/v1/validate", httpapi.ValidateRequest{
		Schema: testSchema,
		Data:   "core.Server: {name: web-1}",
	})

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !bytes.Contains(buf.Bytes(), []byte("yasl_runs_total")) {
		t.Error("metrics output should include yasl_runs_total")
	}
}
