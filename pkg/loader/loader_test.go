package loader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Nels2/mcp-trmm/pkg/document"
	"github.com/Nels2/mcp-trmm/pkg/index"
	"github.com/Nels2/mcp-trmm/pkg/server"
)

const trmmYAML = `openapi: 3.0.3
info:
  title: Tactical RMM API
  version: 0.19.0
servers:
  - url: https://api.example.org
components:
  securitySchemes:
    ApiKeyAuth:
      type: apiKey
      in: header
      name: X-API-KEY
paths:
  /clients/:
    get:
      description: List clients
      responses:
        "200":
          description: OK
  /agents/:
    post:
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                hostname:
                  type: string
      responses:
        "201":
          description: Created
    get:
      description: List agents
      responses:
        "200":
          description: OK
`

func TestDecode_KeepsDocumentOrder(t *testing.T) {
	doc, err := Decode([]byte(trmmYAML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	idx, err := index.Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var got []string
	for _, e := range idx.Entries() {
		got = append(got, e.Method+" "+e.Path)
	}
	want := []string{"GET /clients/", "POST /agents/", "GET /agents/"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	post, _ := idx.Lookup("/agents/", "POST")
	props, _ := post.RequestSchema["properties"].(map[string]any)
	if _, ok := props["hostname"]; !ok {
		t.Errorf("expected plain request schema, got %#v", post.RequestSchema)
	}
}

func TestDecode_JSON(t *testing.T) {
	doc, err := Decode([]byte(`{"paths": {"/b/": {"get": {}}, "/a/": {"get": {}}}}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	paths, _ := doc.Get("paths")
	if got := paths.(document.Map).Keys(); !reflect.DeepEqual(got, []string{"/b/", "/a/"}) {
		t.Errorf("expected source order, got %v", got)
	}
}

func TestDecode_MergeKeysAndAliases(t *testing.T) {
	src := `base: &base
  description: shared
paths:
  /a/:
    get:
      <<: *base
      summary: a
`
	doc, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	idx, err := index.Build(doc)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	e, _ := idx.Lookup("/a/", "GET")
	if e.Description != "shared" {
		t.Errorf("expected merged description, got %q", e.Description)
	}
}

func TestDecode_RootMustBeMapping(t *testing.T) {
	if _, err := Decode([]byte("- a\n- b\n")); err == nil {
		t.Error("expected error for sequence root")
	}
	if _, err := Decode([]byte("paths: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	doc, err := Decode([]byte(trmmYAML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	js, err := ToJSON(doc, "  ")
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if strings.Index(string(js), `"/clients/"`) > strings.Index(string(js), `"/agents/"`) {
		t.Error("expected JSON to keep path order")
	}
	back, err := Decode(js)
	if err != nil {
		t.Fatalf("Decode of JSON failed: %v", err)
	}
	y, err := ToYAML(back)
	if err != nil {
		t.Fatalf("ToYAML failed: %v", err)
	}
	again, err := Decode(y)
	if err != nil {
		t.Fatalf("Decode of YAML failed: %v", err)
	}
	if !reflect.DeepEqual(document.Plain(doc), document.Plain(again)) {
		t.Error("expected conversion to preserve content")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		source string
		data   string
		want   string
	}{
		{"spec.json", "openapi: 3", "json"},
		{"spec.yml", "{}", "yaml"},
		{"inline", "  {\"paths\": {}}", "json"},
		{"inline", "paths: {}", "yaml"},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.source, []byte(tt.data)); got != tt.want {
			t.Errorf("DetectFormat(%q): expected %s, got %s", tt.source, tt.want, got)
		}
	}
}

func TestInspect(t *testing.T) {
	info, err := Inspect(context.Background(), []byte(trmmYAML), true)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Title != "Tactical RMM API" || info.Version != "0.19.0" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.ServerURL != "https://api.example.org" || info.CredentialHeader != "X-API-KEY" {
		t.Errorf("unexpected server/credential %+v", info)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "TRMM.yaml")
	if err := os.WriteFile(path, []byte(trmmYAML), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	loaded, err := New().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "trmm" || loaded.Format != "yaml" || loaded.Info.Title != "Tactical RMM API" {
		t.Errorf("unexpected loaded document %+v", loaded)
	}
}

func TestFetch_MissingFile(t *testing.T) {
	_, err := New().Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if !server.IsType(err, server.ErrorTypeNotFound) {
		t.Errorf("expected not_found error, got %v", err)
	}
}

func TestFetch_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.yaml" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(trmmYAML))
	}))
	defer srv.Close()

	l := New(WithHTTPClient(srv.Client()))
	data, err := l.Fetch(context.Background(), srv.URL+"/openapi.yaml")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != trmmYAML {
		t.Error("unexpected body")
	}

	_, err = l.Fetch(context.Background(), srv.URL+"/missing.yaml")
	if !server.IsType(err, server.ErrorTypeNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
}

type fakeS3 struct {
	bucket, key string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = *in.Bucket, *in.Key
	if *in.Key != "specs/trmm.yaml" {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(trmmYAML))}, nil
}

func TestFetch_S3(t *testing.T) {
	fake := &fakeS3{}
	l := New(WithS3Client(fake))

	data, err := l.Fetch(context.Background(), "s3://schemas/specs/trmm.yaml")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fake.bucket != "schemas" || fake.key != "specs/trmm.yaml" {
		t.Errorf("unexpected object %s/%s", fake.bucket, fake.key)
	}
	if string(data) != trmmYAML {
		t.Error("unexpected body")
	}

	if _, err := l.Fetch(context.Background(), "s3://schemas/other.yaml"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://b/k/x.json")
	if err != nil || bucket != "b" || key != "k/x.json" {
		t.Errorf("unexpected parse %q %q %v", bucket, key, err)
	}
	for _, bad := range []string{"s3://bucket", "s3:///key", "http://b/k"} {
		if _, _, err := ParseS3URL(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestNameFromSource(t *testing.T) {
	tests := map[string]string{
		"specs/TRMM.yaml":                    "trmm",
		"https://host/api/openapi.json?v=2":  "openapi",
		"s3://bucket/schemas/rmm-schema.yml": "rmm-schema",
	}
	for in, want := range tests {
		if got := NameFromSource(in); got != want {
			t.Errorf("NameFromSource(%q): expected %q, got %q", in, want, got)
		}
	}
}
