package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nels2/mcp-trmm/pkg/auth"
	"github.com/Nels2/mcp-trmm/pkg/forward"
	"github.com/Nels2/mcp-trmm/pkg/gateway"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/logging"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

type upstreamCall struct {
	method string
	path   string
	key    string
	query  string
	body   string
}

func newTestStack(t *testing.T, opts ...gateway.Option) (*gateway.Facade, chan upstreamCall) {
	t.Helper()
	calls := make(chan upstreamCall, 10)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls <- upstreamCall{r.Method, r.URL.Path, r.Header.Get("X-API-KEY"), r.URL.RawQuery, string(body)}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/agents/missing/" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"not found"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(upstream.Close)

	idx, err := index.FromEntries([]models.EndpointSpec{
		{Path: "/agents/", Method: "GET", Description: "List agents"},
		{Path: "/agents/missing/", Method: "GET", Description: "Missing agent"},
		{Path: "/scripts/", Method: "POST", Description: "Create script"},
	})
	if err != nil {
		t.Fatalf("FromEntries failed: %v", err)
	}
	facade := gateway.New(forward.NewEngine(upstream.URL), opts...)
	facade.Publish(idx)
	return facade, calls
}

func TestHealth(t *testing.T) {
	facade, _ := newTestStack(t)
	srv := httptest.NewServer(NewRouter(RouterConfig{Gateway: facade}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["endpoints"] != float64(3) {
		t.Errorf("expected 3 endpoints, got %v", body["endpoints"])
	}
}

func TestHealthNotReady(t *testing.T) {
	facade := gateway.New(forward.NewEngine("http://127.0.0.1:1"))
	rec := httptest.NewRecorder()
	HandleHealth(facade).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestQueryReturnsEntries(t *testing.T) {
	facade, _ := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query?query=AGENTS", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []models.EndpointSpec
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "/agents/" {
		t.Errorf("expected 2 agent entries, got %+v", entries)
	}
}

func TestQueryNoMatch(t *testing.T) {
	facade, _ := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query?query=nothing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"No matching endpoints found"}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestForwardUsesHeaderCredentialAndParams(t *testing.T) {
	facade, calls := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	req := httptest.NewRequest(http.MethodPost, "/forward?query=/agents/&page=2", nil)
	req.Header.Set("X-API-KEY", "caller-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":true}` {
		t.Errorf("expected upstream body, got %s", got)
	}
	call := <-calls
	if call.method != http.MethodGet || call.path != "/agents/" {
		t.Errorf("expected GET /agents/, got %s %s", call.method, call.path)
	}
	if call.key != "caller-key" {
		t.Errorf("expected caller-key, got %q", call.key)
	}
	if call.query != "page=2" {
		t.Errorf("expected page=2, got %q", call.query)
	}
}

func TestForwardSendsPayload(t *testing.T) {
	facade, calls := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	req := httptest.NewRequest(http.MethodPost, "/forward?query=scripts", strings.NewReader(`{"name":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	call := <-calls
	if call.method != http.MethodPost || call.body != `{"name":"x"}` {
		t.Errorf("expected POST with payload, got %s %q", call.method, call.body)
	}
}

func TestForwardUpstreamStatus(t *testing.T) {
	facade, _ := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forward?query=/agents/missing/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["kind"] != "upstream_status" {
		t.Errorf("expected upstream_status kind, got %v", body["kind"])
	}
}

func TestForwardValidation(t *testing.T) {
	facade, calls := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade})

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"missing query", "/forward", "", http.StatusBadRequest},
		{"bad json", "/forward?query=scripts", "{", http.StatusBadRequest},
		{"unsupported method", "/forward?query=agents&method=TRACE", "", http.StatusMethodNotAllowed},
		{"unknown path", "/forward?query=nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, rec.Code)
			}
		})
	}
	if len(calls) != 0 {
		t.Errorf("expected no upstream calls, got %d", len(calls))
	}
}

func TestAgentRoutesRequireBearer(t *testing.T) {
	facade, _ := newTestStack(t)
	router := NewRouter(RouterConfig{
		Gateway:  facade,
		Verifier: auth.NewBearerVerifier("secret", ""),
	})

	for _, target := range []string{"/query_api", "/run_api"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(`{"query":"agents"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/query_api", strings.NewReader(`{"query":"agents"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body AvailablePaths
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.AvailablePaths) != 2 {
		t.Errorf("expected 2 available paths, got %d", len(body.AvailablePaths))
	}
}

func TestRunAPIUsesDefaultCredential(t *testing.T) {
	facade, calls := newTestStack(t)
	router := NewRouter(RouterConfig{Gateway: facade, DefaultCredential: "server-key"})

	rec := httptest.NewRecorder()
	body := `{"query":"/scripts/","method":"post","payload":{"a":1}}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run_api", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res map[string]any
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res["status"] != float64(200) {
		t.Errorf("expected status 200 in body, got %v", res["status"])
	}
	call := <-calls
	if call.key != "server-key" || call.body != `{"a":1}` {
		t.Errorf("expected server-key and payload, got %q %q", call.key, call.body)
	}
}

func TestForwardNeverUsesDefaultCredential(t *testing.T) {
	facade, calls := newTestStack(t)
	router := NewRouter(RouterConfig{
		Gateway:           facade,
		Verifier:          auth.NewBearerVerifier("secret", ""),
		DefaultCredential: "SERVER-KEY",
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run_api", strings.NewReader(`{"query":"/agents/","method":"GET"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on /run_api without bearer, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forward?query=/agents/", nil))
	call := <-calls
	if call.key != "" {
		t.Errorf("expected no credential on /forward, got %q", call.key)
	}
}

type failingGateway struct {
	Gateway
	err error
}

func (g failingGateway) ListCandidates(string) ([]models.Candidate, error) { return nil, g.err }

func TestQueryAPIInternalErrorLogsStack(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Output: &buf, Format: "json"})
	gw := failingGateway{err: errors.New("storage offline")}

	rec := httptest.NewRecorder()
	HandleQueryAPI(gw, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query_api", strings.NewReader(`{"query":"agents"}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"stack_trace"`) {
		t.Errorf("expected stack trace in log, got %s", buf.String())
	}

	buf.Reset()
	gw.err = NewError(ErrorTypeDatabase, "database unavailable", "")
	rec = httptest.NewRecorder()
	HandleQueryAPI(gw, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/query_api", strings.NewReader(`{"query":"agents"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for a database error, got %d", rec.Code)
	}
	if strings.Contains(buf.String(), `"stack_trace"`) {
		t.Error("expected no stack trace for a typed error")
	}
}

func TestRunAPIRequiresMethod(t *testing.T) {
	facade, _ := newTestStack(t)
	rec := httptest.NewRecorder()
	HandleRunAPI(facade, "", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/run_api", strings.NewReader(`{"query":"agents"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestReload(t *testing.T) {
	facade, _ := newTestStack(t)
	var gotCtx bool
	reload := func(ctx context.Context) ([]string, error) {
		gotCtx = RequestID(ctx) != ""
		return []string{"trmm"}, nil
	}
	router := NewRouter(RouterConfig{Gateway: facade, Reload: reload})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body ReloadResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Success || len(body.ReloadedSpecs) != 1 || body.IndexEndpoints != 3 {
		t.Errorf("unexpected reload response %+v", body)
	}
	if !gotCtx {
		t.Error("expected request ID in reload context")
	}
}

func TestReloadFailure(t *testing.T) {
	facade, _ := newTestStack(t)
	reload := func(ctx context.Context) ([]string, error) { return nil, errors.New("boom") }

	rec := httptest.NewRecorder()
	HandleReload(reload, facade, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body ReloadResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Success || body.Error != "boom" {
		t.Errorf("unexpected reload response %+v", body)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleOpenAPI().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths["/run_api"]; !ok {
		t.Fatalf("expected /run_api in paths, got %v", paths)
	}
	if !strings.Contains(rec.Body.String(), `"method"`) {
		t.Error("expected reflected method property in run_api schema")
	}
}
