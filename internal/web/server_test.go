package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/metrics"
)

type fakeCatalog struct {
	mu      sync.Mutex
	schema  catalog.Schema
	created []string
}

func (c *fakeCatalog) LoadSchema(ctx context.Context, entityType string) (catalog.Schema, error) {
	if entityType == "catalog_category" {
		return catalog.Schema{}, nil
	}
	return c.schema.Clone(), nil
}

func (c *fakeCatalog) OptionCreator(entityType string) catalog.OptionCreator {
	return catalog.OptionCreatorFunc(func(ctx context.Context, attrCode string, opt catalog.Option) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.created = append(c.created, attrCode+":"+opt.Label)
		return nil
	})
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		schema: catalog.Schema{
			"sku":   {Code: "sku", Type: catalog.TypeVarchar, IsRequired: true, IsUnique: true},
			"color": {Code: "color", Type: catalog.TypeSelect, Options: catalog.NewOptionSet("red")},
			"ean":   {Code: "ean", Type: catalog.TypeVarchar, IsUnique: true},
			"qty":   {Code: "qty", Type: catalog.TypeInt, ApplyTo: []string{"simple"}},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second},
		Import: config.ImportConfig{
			EntityType:  "catalog_product",
			MaxFeedSize: 1024,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

type testServer struct {
	srv     *Server
	cat     *fakeCatalog
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, mcfg core.ManagerConfig) *testServer {
	t.Helper()
	cat := newFakeCatalog()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	types := catalog.NewTypeCache(cat, "catalog_product")
	runs := core.NewRunManager(cat, mcfg,
		core.WithListeners(types),
		core.WithRunRecorder(m),
	)
	return &testServer{srv: NewServer(runs, types, m, testConfig()), cat: cat, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ts *testServer) startRun(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/runs", `{"entity_type":"catalog_product"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start run status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decode[startRunResponse](t, rec)
	if resp.RunID == "" {
		t.Fatal("start run returned empty run_id")
	}
	return resp.RunID
}

func messageKinds(res core.RowResult) []core.ErrorKind {
	var out []core.ErrorKind
	for _, m := range res.Messages {
		out = append(out, m.Kind)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{MaxConcurrent: 3})

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decode[healthResponse](t, rec)
	if resp.Status != "ok" || resp.Available != 3 || resp.ActiveRuns != 0 {
		t.Errorf("health = %+v", resp)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRunLifecycle(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})
	id := ts.startRun(t)

	rows := `[
		{"sku":"A","product_type":"simple","color":"Blue","ean":"111","qty":"1"},
		{"sku":"B","product_type":"simple","ean":"111","qty":"many"}
	]`
	rec := ts.do(t, http.MethodPost, "/api/runs/"+id+"/rows", rows)
	if rec.Code != http.StatusOK {
		t.Fatalf("rows status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[validateResponse](t, rec)
	if resp.Rows != 2 || resp.InvalidRows != 1 {
		t.Errorf("rows = %d, invalid = %d, want 2, 1", resp.Rows, resp.InvalidRows)
	}
	if !resp.Results[0].Valid || resp.Results[0].Line != 1 {
		t.Errorf("first result = %+v, want valid line 1", resp.Results[0])
	}
	second := resp.Results[1]
	want := []core.ErrorKind{core.KindDuplicateUniqueAttribute, core.KindInvalidAttributeType}
	if got := messageKinds(second); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("second result kinds = %v, want %v", got, want)
	}
	if second.SKU != "B" || second.Line != 2 {
		t.Errorf("second result = %+v, want sku B line 2", second)
	}
	if len(ts.cat.created) != 1 || ts.cat.created[0] != "color:Blue" {
		t.Errorf("created options = %v, want [color:Blue]", ts.cat.created)
	}

	rec = ts.do(t, http.MethodGet, "/api/runs/"+id, "")
	summary := decode[core.RunSummary](t, rec)
	if summary.Rows != 2 || summary.InvalidRows != 1 || summary.OptionsCreated != 1 || summary.DynamicOptions != 1 {
		t.Errorf("summary = %+v", summary)
	}

	rec = ts.do(t, http.MethodDelete, "/api/runs/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/runs/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("summary after finish status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "RUN001" {
		t.Errorf("error code = %s, want RUN001", got)
	}
}

func TestStartRun_DefaultEntityType(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})

	rec := ts.do(t, http.MethodPost, "/api/runs", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[startRunResponse](t, rec).EntityType; got != "catalog_product" {
		t.Errorf("entity_type = %q, want catalog_product", got)
	}
}

func TestValidateFeed(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})
	id := ts.startRun(t)

	body := "\xEF\xBB\xBFSKU,Color\nB,red\n,=\"green\"\n"
	rec := ts.do(t, http.MethodPost, "/api/runs/"+id+"/feed", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[validateResponse](t, rec)
	if resp.Rows != 2 || resp.InvalidRows != 1 {
		t.Fatalf("rows = %d, invalid = %d, want 2, 1", resp.Rows, resp.InvalidRows)
	}
	if resp.Results[0].Line != 2 || !resp.Results[0].Valid {
		t.Errorf("first result = %+v, want valid line 2", resp.Results[0])
	}
	last := resp.Results[1]
	if last.Line != 3 || last.Valid {
		t.Errorf("second result = %+v, want invalid line 3", last)
	}
	if got := messageKinds(last); len(got) != 1 || got[0] != core.KindValueRequired {
		t.Errorf("second result kinds = %v, want [value-required]", got)
	}
	if len(ts.cat.created) != 1 || ts.cat.created[0] != "color:green" {
		t.Errorf("created options = %v, want [color:green]", ts.cat.created)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown run summary", http.MethodGet, "/api/runs/missing", "", http.StatusNotFound, "RUN001"},
		{"unknown run finish", http.MethodDelete, "/api/runs/missing", "", http.StatusNotFound, "RUN001"},
		{"unknown run feed", http.MethodPost, "/api/runs/missing/feed", "sku\nA\n", http.StatusNotFound, "RUN001"},
		{"empty schema", http.MethodPost, "/api/runs", `{"entity_type":"catalog_category"}`, http.StatusUnprocessableEntity, "SCH002"},
		{"bad start body", http.MethodPost, "/api/runs", `{"entity_type":`, http.StatusBadRequest, "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, core.ManagerConfig{})
			rec := ts.do(t, tt.method, tt.path, tt.body)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestRunBodyErrors(t *testing.T) {
	tests := []struct {
		name       string
		endpoint   string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"rows not an array", "rows", `{"sku":"A"}`, http.StatusBadRequest, "FEED004"},
		{"rows too large", "rows", "[" + strings.Repeat(`{"sku":"A"},`, 200) + `{"sku":"A"}]`, http.StatusRequestEntityTooLarge, "FEED002"},
		{"empty feed", "feed", "", http.StatusBadRequest, "FEED003"},
		{"duplicate feed column", "feed", "sku,SKU\nA,B\n", http.StatusBadRequest, "FEED001"},
		{"feed too large", "feed", "sku\n" + strings.Repeat("A\n", 1024), http.StatusRequestEntityTooLarge, "FEED002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, core.ManagerConfig{})
			id := ts.startRun(t)

			rec := ts.do(t, http.MethodPost, "/api/runs/"+id+"/"+tt.endpoint, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestStartRun_TooManyRuns(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	ts.startRun(t)

	rec := ts.do(t, http.MethodPost, "/api/runs", `{"entity_type":"catalog_product"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if got := rec.Header().Get("Retry-After"); got == "" {
		t.Error("Retry-After header not set")
	}
	if got := decode[ErrorResponse](t, rec).Code; got != "RUN002" {
		t.Errorf("code = %s, want RUN002", got)
	}
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{MaxConcurrent: 5})
	first := ts.startRun(t)
	ts.startRun(t)

	rec := ts.do(t, http.MethodGet, "/api/runs", "")
	type listResponse struct {
		Runs    []core.RunSummary     `json:"runs"`
		Limiter core.RunLimiterStatus `json:"limiter"`
	}
	resp := decode[listResponse](t, rec)

	if len(resp.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(resp.Runs))
	}
	found := false
	for _, r := range resp.Runs {
		if r.RunID == first {
			found = true
		}
	}
	if !found {
		t.Errorf("run %s missing from list", first)
	}
	if resp.Limiter.Active != 2 || resp.Limiter.Available != 3 {
		t.Errorf("limiter = %+v, want 2 active, 3 available", resp.Limiter)
	}
}

func TestProductTypeAttributes(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})

	rec := ts.do(t, http.MethodGet, "/api/product-types/configurable/attributes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	type attributesResponse struct {
		ProductType string          `json:"product_type"`
		Attributes  []attributeView `json:"attributes"`
	}
	resp := decode[attributesResponse](t, rec)

	// qty applies to simple products only
	var codes []string
	for _, a := range resp.Attributes {
		codes = append(codes, a.Code)
	}
	if strings.Join(codes, ",") != "color,ean,sku" {
		t.Errorf("codes = %v, want [color ean sku]", codes)
	}
	if got := resp.Attributes[0].Options; len(got) != 1 || got[0] != "red" {
		t.Errorf("color options = %v, want [red]", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/product-types", "")
	types := decode[map[string][]string](t, rec)["product_types"]
	if len(types) != 1 || types[0] != "configurable" {
		t.Errorf("cached product types = %v, want [configurable]", types)
	}
}

func TestOptionCreationInvalidatesProductType(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})
	ts.do(t, http.MethodGet, "/api/product-types/simple/attributes", "")

	id := ts.startRun(t)
	ts.do(t, http.MethodPost, "/api/runs/"+id+"/rows", `[{"sku":"A","product_type":"simple","color":"Teal"}]`)

	rec := ts.do(t, http.MethodGet, "/api/product-types", "")
	types := decode[map[string][]string](t, rec)["product_types"]
	if len(types) != 0 {
		t.Errorf("cached product types = %v, want none after option creation", types)
	}
}

func TestClearProductTypes(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})
	ts.do(t, http.MethodGet, "/api/product-types/simple/attributes", "")
	ts.do(t, http.MethodGet, "/api/product-types/virtual/attributes", "")

	rec := ts.do(t, http.MethodDelete, "/api/product-types", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]int](t, rec)["dropped"]; got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}

	rec = ts.do(t, http.MethodGet, "/api/product-types", "")
	types := decode[map[string][]string](t, rec)["product_types"]
	if len(types) != 0 {
		t.Errorf("cached product types = %v, want none after clear", types)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, core.ManagerConfig{})
	id := ts.startRun(t)
	ts.do(t, http.MethodGet, "/api/runs/"+id, "")

	if got := testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("POST", "/api/runs", "201")); got != 1 {
		t.Errorf("POST /api/runs count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ts.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/runs/{runID}", "200")); got != 1 {
		t.Errorf("GET /api/runs/{runID} count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ts.metrics.ActiveRuns); got != 1 {
		t.Errorf("runs_active = %v, want 1", got)
	}

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "catalogimport_http_requests_total") {
		t.Error("metrics output missing catalogimport_http_requests_total")
	}
}
