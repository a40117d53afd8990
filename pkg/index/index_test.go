package index

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Nels2/mcp-trmm/pkg/document"
	"github.com/Nels2/mcp-trmm/pkg/models"
)

func sampleDocument() map[string]any {
	return map[string]any{
		"openapi": "3.0.0",
		"paths": map[string]any{
			"/agents/": map[string]any{
				"get": map[string]any{
					"description": "List agents",
					"responses": map[string]any{
						"200": map[string]any{"description": "OK"},
					},
				},
				"post": map[string]any{
					"requestBody": map[string]any{
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{"type": "object"},
							},
						},
					},
					"responses": map[any]any{
						201: map[string]any{},
					},
				},
			},
			"/agents/{agent_id}/": map[string]any{
				"parameters": []any{map[string]any{"name": "agent_id"}},
				"delete":     map[string]any{"description": "Delete agent"},
			},
			"/clients/": map[string]any{
				"x-internal": true,
				"get":        map[string]any{"description": "List clients"},
			},
		},
	}
}

func TestBuild_EndToEndDocument(t *testing.T) {
	doc := map[string]any{
		"paths": map[string]any{
			"/agents/": map[string]any{
				"get": map[string]any{"description": "List agents"},
			},
		},
	}
	idx, err := Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := idx.Query("agents")
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].Path != "/agents/" || got[0].Method != "GET" || got[0].Description != "List agents" {
		t.Errorf("unexpected entry %+v", got[0])
	}
	if got[0].RequestSchema != nil {
		t.Errorf("expected no request schema, got %v", got[0].RequestSchema)
	}
}

func TestQuery_FoldsCase(t *testing.T) {
	idx, err := FromEntries([]models.EndpointSpec{
		{Path: "/Agents/", Method: "GET"},
		{Path: "/Ärzte/", Method: "GET"},
	})
	if err != nil {
		t.Fatalf("FromEntries failed: %v", err)
	}
	for _, q := range []string{"agents", "AGENTS", "ärzte", "ÄRZTE"} {
		if got := idx.Query(q); len(got) != 1 {
			t.Errorf("Query(%q): expected 1 entry, got %d", q, len(got))
		}
	}
}

func TestBuild_OneEntryPerOperation(t *testing.T) {
	idx, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	all := idx.Query("")
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	seen := map[models.EndpointKey]bool{}
	for _, e := range all {
		if seen[e.Key()] {
			t.Errorf("duplicate entry %s %s", e.Method, e.Path)
		}
		seen[e.Key()] = true
	}
	if idx.Len() != len(all) {
		t.Errorf("expected Len %d, got %d", len(all), idx.Len())
	}
}

func TestBuild_PlainMapOrderIsCanonical(t *testing.T) {
	idx, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var got []string
	for _, e := range idx.Entries() {
		got = append(got, e.Method+" "+e.Path)
	}
	want := []string{
		"GET /agents/",
		"POST /agents/",
		"DELETE /agents/{agent_id}/",
		"GET /clients/",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuild_OrderedDocumentKeepsSourceOrder(t *testing.T) {
	doc := document.Map{
		{Key: "paths", Value: document.Map{
			{Key: "/zeta/", Value: document.Map{
				{Key: "post", Value: document.Map{}},
				{Key: "get", Value: document.Map{}},
			}},
			{Key: "/alpha/", Value: document.Map{
				{Key: "get", Value: document.Map{}},
			}},
		}},
	}
	idx, err := Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var got []string
	for _, e := range idx.Entries() {
		got = append(got, e.Method+" "+e.Path)
	}
	want := []string{"POST /zeta/", "GET /zeta/", "GET /alpha/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		next, err := Build(sampleDocument())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if !reflect.DeepEqual(first.Entries(), next.Entries()) {
			t.Fatalf("build %d produced different entries", i)
		}
	}
}

func TestBuild_Defaults(t *testing.T) {
	idx, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	post, ok := idx.Lookup("/agents/", "post")
	if !ok {
		t.Fatal("expected POST /agents/ to be indexed")
	}
	if post.Description != models.DefaultDescription {
		t.Errorf("expected default description, got %q", post.Description)
	}
	if post.ResponseSummary["201"] != models.DefaultResponseDescription {
		t.Errorf("expected default response description, got %v", post.ResponseSummary)
	}
	if !reflect.DeepEqual(post.RequestSchema, map[string]any{"type": "object"}) {
		t.Errorf("expected request schema to be extracted, got %v", post.RequestSchema)
	}

	get, _ := idx.Lookup("/agents/", "GET")
	if get.ResponseSummary["200"] != "OK" {
		t.Errorf("expected response 200 description OK, got %v", get.ResponseSummary)
	}
}

func TestBuild_EmptyRequestSchemaIsAbsent(t *testing.T) {
	doc := map[string]any{"paths": map[string]any{
		"/x/": map[string]any{"put": map[string]any{
			"requestBody": map[string]any{"content": map[string]any{
				"application/json": map[string]any{"schema": map[string]any{}},
			}},
		}},
	}}
	idx, err := Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	e, _ := idx.Lookup("/x/", "PUT")
	if e.RequestSchema != nil {
		t.Errorf("expected nil request schema, got %v", e.RequestSchema)
	}
}

func TestBuild_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  any
	}{
		{"not a mapping", "paths"},
		{"missing paths", map[string]any{"openapi": "3.0.0"}},
		{"paths not a mapping", map[string]any{"paths": []any{"/a"}}},
		{"path item not a mapping", map[string]any{"paths": map[string]any{"/a": "get"}}},
		{"operation not a mapping", map[string]any{"paths": map[string]any{"/a": map[string]any{"get": "list"}}}},
		{"unknown key", map[string]any{"paths": map[string]any{"/a": map[string]any{"fetch": map[string]any{}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.doc)
			var malformed *MalformedSchemaError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedSchemaError, got %v", err)
			}
			if malformed.Kind() != "malformed_schema" {
				t.Errorf("expected kind malformed_schema, got %s", malformed.Kind())
			}
		})
	}
}

func TestQuery_CaseInsensitiveSubstring(t *testing.T) {
	idx, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for _, q := range []string{"agent", "AGENT", "{agent_id}", "clients", "/", "zzz"} {
		for _, e := range idx.Query(q) {
			if !strings.Contains(strings.ToLower(e.Path), strings.ToLower(q)) {
				t.Errorf("query %q returned non-matching path %s", q, e.Path)
			}
		}
	}
	if n := len(idx.Query("AGENTS")); n != 3 {
		t.Errorf("expected 3 matches for AGENTS, got %d", n)
	}
	if got := idx.Query("zzz"); len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestFromEntries_FirstOccurrenceWins(t *testing.T) {
	idx, err := FromEntries([]models.EndpointSpec{
		{Path: "/a/", Method: "get", Description: "first"},
		{Path: "/a/", Method: "GET", Description: "second"},
		{Path: "/b/", Method: "post"},
	})
	if err != nil {
		t.Fatalf("FromEntries failed: %v", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", idx.Len())
	}
	a, _ := idx.Lookup("/a/", "GET")
	if a.Description != "first" {
		t.Errorf("expected first occurrence to win, got %q", a.Description)
	}
	b, _ := idx.Lookup("/b/", "POST")
	if b.Description != models.DefaultDescription {
		t.Errorf("expected default description, got %q", b.Description)
	}
}

func TestFromEntries_RejectsUnknownMethod(t *testing.T) {
	_, err := FromEntries([]models.EndpointSpec{{Path: "/a/", Method: "FETCH"}})
	var malformed *MalformedSchemaError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSchemaError, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	idx, err := Build(sampleDocument())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	s := idx.Summary()
	if s.Total != 4 || s.Methods["GET"] != 2 || s.Resources["agents"] != 3 || s.WithBody != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	var buf bytes.Buffer
	s.Print(&buf)
	if !strings.Contains(buf.String(), "Total endpoints: 4") {
		t.Errorf("expected total in output, got %q", buf.String())
	}
}
